// Command viewer dumps stored conversations from a badger directory as a
// readable table. It opens the database read-only, so it can run next to a
// live server.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"

	"task-chat/domain"
	"task-chat/repositories"
)

func main() {
	dbPath := flag.String("db", "/tmp/task-chat/badger", "Path to badger DB")
	conversation := flag.String("conversation", "", "Restrict output to one conversation id")
	flag.Parse()

	// BypassLockGuard allows opening while the server holds the lock
	opts := badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	prefix := "msg:"
	if *conversation != "" {
		prefix = fmt.Sprintf("msg:%s:", *conversation)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Conversation", "Time", "Sender", "Status", "Text"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	count := 0
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()

			// Skip the secondary id index, it holds key pointers only
			if strings.HasPrefix(string(item.Key()), "idx:") {
				continue
			}

			err := item.Value(func(v []byte) error {
				var message repositories.DiskMessage
				if err := json.Unmarshal(v, &message); err != nil {
					fmt.Printf("Error unmarshaling key %s: %v\n", string(item.Key()), err)
					return nil
				}

				displaySender := message.Sender
				if len(displaySender) > 8 {
					displaySender = displaySender[:8]
				}

				table.Append([]string{
					string(message.Conversation),
					message.At.Format("2006-01-02 15:04:05"),
					displaySender,
					colorizeStatus(message.Status),
					message.Text,
				})
				count++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
	color.Cyan.Printf("\n%d message(s)\n", count)
}

func colorizeStatus(status domain.Status) string {
	switch status {
	case domain.StatusRead:
		return color.Green.Sprint(status)
	case domain.StatusDelivered:
		return color.Cyan.Sprint(status)
	case domain.StatusSent:
		return color.Yellow.Sprint(status)
	default:
		return color.Red.Sprint(status)
	}
}
