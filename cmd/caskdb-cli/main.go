package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/0xRadioAc7iv/go-caskdb/caskdb"
	"github.com/0xRadioAc7iv/go-caskdb/internal/utils"
)

const helpText = `
Available Commands:

PING
  Check if the server is alive.

PUT <key> <value>
  Store a value for the given key. Overwrites an existing value.

GET <key>
  Retrieve the value associated with the key.

DELETE <key>
  Delete the key and its value.

RANGE <startKey> <endKey>
  List all pairs with startKey <= key < endKey.

BATCHPUT <key> <value> [<key> <value> ...]
  Store several pairs in one batch.

LISTKEYS
  List all stored keys.

MERGE
  Compact the immutable segments on the server.

HELP (cli only)
  Show this help message.

EXIT (cli only)
  Close the client connection.
`

var rootCmd = &cobra.Command{
	Use:   "caskdb-cli",
	Short: "Interactive client for a caskdb server",
	RunE:  run,
}

func init() {
	rootCmd.Flags().String("host", "127.0.0.1", "Server host")
	rootCmd.Flags().IntP("port", "p", 5000, "Server port")
}

func run(cmd *cobra.Command, _ []string) error {
	host, _ := cmd.Flags().GetString("host")
	port, _ := cmd.Flags().GetInt("port")

	client, err := caskdb.Connect(caskdb.WithHost(host), caskdb.WithPort(port))
	if err != nil {
		return err
	}
	defer client.Close()

	fmt.Printf("Connected to %s:%d\n", host, port)
	fmt.Println("Type commands. 'help' for information or 'exit' to quit.")

	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Print("> ")

		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println("input error:", err)
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch strings.ToLower(line) {
		case "exit":
			return nil
		case "help":
			fmt.Println(strings.TrimSpace(helpText))
			continue
		}

		resp, err := execute(client, line)
		if err != nil {
			fmt.Println("error:", err)
			continue
		}

		fmt.Println(resp)
	}
}

func execute(client *caskdb.Client, line string) (string, error) {
	tokens, err := utils.TokenizeCommand(line)
	if err != nil {
		return "", fmt.Errorf("parse error: %w", err)
	}

	cmd := strings.ToLower(tokens[0])
	args := tokens[1:]

	switch cmd {
	case "batchput":
		if len(args) == 0 || len(args)%2 != 0 {
			return "", fmt.Errorf("batchput needs key value pairs")
		}
		pairs := make([]caskdb.KV, 0, len(args)/2)
		for i := 0; i < len(args); i += 2 {
			pairs = append(pairs, caskdb.KV{Key: args[i], Val: args[i+1]})
		}
		return client.BATCHPUT(pairs)
	case "range":
		if len(args) != 2 {
			return "", fmt.Errorf("range needs startKey and endKey")
		}
		return client.RANGE(args[0], args[1])
	default:
		var key, value string
		if len(args) > 0 {
			key = args[0]
		}
		if len(args) > 1 {
			value = args[1]
		}
		return client.Execute(cmd, key, value)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
