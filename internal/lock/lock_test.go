package lock_test

import (
	"testing"

	"github.com/0xRadioAc7iv/go-caskdb/internal/lock"
)

func TestLockDirectory(t *testing.T) {
	t.Run("second lock on a held directory fails", func(t *testing.T) {
		dir := t.TempDir()

		f, err := lock.LockDirectory(dir)
		if err != nil {
			t.Fatalf("could not acquire initial lock: %v", err)
		}
		defer lock.UnlockDirectory(f)

		if _, err := lock.LockDirectory(dir); err == nil {
			t.Error("second lock was not supposed to succeed")
		}
	})

	t.Run("lock can be reacquired after release", func(t *testing.T) {
		dir := t.TempDir()

		f, err := lock.LockDirectory(dir)
		if err != nil {
			t.Fatalf("could not acquire lock: %v", err)
		}
		lock.UnlockDirectory(f)

		f2, err := lock.LockDirectory(dir)
		if err != nil {
			t.Fatalf("could not reacquire lock: %v", err)
		}
		lock.UnlockDirectory(f2)
	})
}
