package core

import "github.com/zhangyunhao116/skipmap"

// Locator points at the live value bytes of one key: the segment file that
// holds them, the absolute offset of the value payload, and its length.
type Locator struct {
	File        string
	ValueOffset int64
	ValueSize   uint32
}

// keyDir is the in-memory index mapping keys to their latest on-disk
// location. It is an ordered concurrent skip-list map: readers iterate and
// look up without locking while the single writer mutates it.
type keyDir struct {
	m *skipmap.FuncMap[string, Locator]
}

func newKeyDir() *keyDir {
	return &keyDir{
		m: skipmap.NewFunc[string, Locator](func(a, b string) bool {
			return a < b
		}),
	}
}

func (kd *keyDir) Get(key string) (Locator, bool) {
	return kd.m.Load(key)
}

func (kd *keyDir) Put(key string, loc Locator) {
	kd.m.Store(key, loc)
}

func (kd *keyDir) Delete(key string) {
	kd.m.Delete(key)
}

func (kd *keyDir) Len() int {
	return kd.m.Len()
}

// Ascend walks the keydir in ascending key order until f returns false.
func (kd *keyDir) Ascend(f func(key string, loc Locator) bool) {
	kd.m.Range(f)
}

// Keys returns a sorted snapshot of all keys.
func (kd *keyDir) Keys() []string {
	keys := make([]string, 0, kd.m.Len())
	kd.m.Range(func(key string, _ Locator) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

type keyLocator struct {
	key string
	loc Locator
}

// span returns a snapshot of all entries with lo <= key < hi, sorted.
func (kd *keyDir) span(lo, hi string) []keyLocator {
	var out []keyLocator
	kd.m.Range(func(key string, loc Locator) bool {
		if key < lo {
			return true
		}
		if key >= hi {
			return false
		}
		out = append(out, keyLocator{key: key, loc: loc})
		return true
	})
	return out
}
