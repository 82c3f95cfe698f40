package main

import (
	"chat-realtime/domain"
	"chat-realtime/repositories"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

// Membership inspector: lists the members of a chat, the chats of a user, or
// seeds/removes a membership with -add/-remove chat:user.
func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	chat := flag.String("chat", "", "List the members of this chat")
	user := flag.String("user", "", "List the chats of this user")
	add := flag.String("add", "", "Add a membership, as chat:user")
	remove := flag.String("remove", "", "Remove a membership, as chat:user")
	flag.Parse()

	readOnly := *add == "" && *remove == ""
	db, err := openDB(*dbPath, readOnly)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	repo := repositories.NewMembershipRepository(db, logs.GetLoggerFromLevel(slog.LevelWarn))

	switch {
	case *add != "":
		chatID, userID, err := parsePair(*add)
		if err != nil {
			log.Fatal(err)
		}
		if err := repo.AddMember(chatID, userID); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("%s joined %s\n", userID, chatID)
	case *remove != "":
		chatID, userID, err := parsePair(*remove)
		if err != nil {
			log.Fatal(err)
		}
		if err := repo.RemoveMember(chatID, userID); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("%s left %s\n", userID, chatID)
	case *chat != "":
		entries, err := repo.Entries(domain.ChatID(*chat))
		if err != nil {
			log.Fatal(err)
		}
		table := newTable("Chat", "User", "Joined at")
		for _, e := range entries {
			table.Append([]string{string(e.ChatID), string(e.UserID), e.JoinedAt.Format("2006-01-02 15:04:05")})
		}
		table.Render()
	case *user != "":
		chats, err := repo.ChatsOf(context.Background(), domain.UserID(*user))
		if err != nil {
			log.Fatal(err)
		}
		table := newTable("User", "Chat")
		for _, c := range chats {
			table.Append([]string{*user, string(c)})
		}
		table.Render()
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func parsePair(s string) (domain.ChatID, domain.UserID, error) {
	chatID, userID, ok := strings.Cut(s, ":")
	if !ok || chatID == "" || userID == "" {
		return "", "", fmt.Errorf("expected chat:user, got %q", s)
	}
	return domain.ChatID(chatID), domain.UserID(userID), nil
}

func newTable(header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
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
	return table
}

func openDB(path string, readOnly bool) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(readOnly).
		WithLogger(nil).
		WithBypassLockGuard(readOnly)
	return badger.Open(opts)
}
