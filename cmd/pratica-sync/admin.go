package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/marcus/pratica/internal/api"
	"github.com/marcus/pratica/internal/serverdb"
)

func runAdmin(args []string) {
	if len(args) == 0 {
		printAdminUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "create-user":
		runAdminCreateUser(args[1:])
	case "create-key":
		runAdminCreateKey(args[1:])
	case "revoke-key":
		runAdminRevokeKey(args[1:])
	case "list-users":
		runAdminListUsers(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown admin command: %s\n", args[0])
		printAdminUsage()
		os.Exit(1)
	}
}

func printAdminUsage() {
	fmt.Fprintln(os.Stderr, `Usage: pratica-sync admin <command> [flags]

Commands:
  create-user  Create a user and print its first API key
  create-key   Create another API key for a user
  revoke-key   Revoke one of a user's API keys
  list-users   List users and their keys`)
}

const dbFlagUsage = "path to server.db (default: from SYNC_SERVER_DB_PATH or ./data/server.db)"

func openDB(dbPath string) *serverdb.ServerDB {
	if dbPath == "" {
		dbPath = api.LoadConfig().ServerDBPath
	}
	store, err := serverdb.Open(dbPath)
	if err != nil {
		fatalf("open database: %v", err)
	}
	return store
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func mustUser(store *serverdb.ServerDB, email string) *serverdb.User {
	user, err := store.GetUserByEmail(email)
	if err != nil {
		fatalf("%v", err)
	}
	if user == nil {
		fatalf("user not found: %s", email)
	}
	return user
}

func expiryFrom(ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	t := time.Now().UTC().Add(ttl)
	return &t
}

func runAdminCreateUser(args []string) {
	fs := pflag.NewFlagSet("admin create-user", pflag.ExitOnError)
	email := fs.String("email", "", "user email address")
	name := fs.String("key-name", "default", "label for the first API key")
	ttl := fs.Duration("expires-in", 0, "key lifetime (0 = never expires)")
	dbPath := fs.String("db", "", dbFlagUsage)
	fs.Parse(args)

	if *email == "" {
		fmt.Fprintln(os.Stderr, "error: --email is required")
		fs.Usage()
		os.Exit(1)
	}

	store := openDB(*dbPath)
	defer store.Close()

	user, err := store.CreateUser(*email)
	if err != nil {
		fatalf("%v", err)
	}
	key, _, err := store.GenerateAPIKey(user.ID, *name, expiryFrom(*ttl))
	if err != nil {
		fatalf("%v", err)
	}

	fmt.Printf("user_id: %s\nemail:   %s\napi_key: %s\n", user.ID, user.Email, key)
	fmt.Fprintln(os.Stderr, "The API key is shown only once.")
}

func runAdminCreateKey(args []string) {
	fs := pflag.NewFlagSet("admin create-key", pflag.ExitOnError)
	email := fs.String("email", "", "user email address")
	name := fs.String("name", "", "key label")
	ttl := fs.Duration("expires-in", 0, "key lifetime (0 = never expires)")
	dbPath := fs.String("db", "", dbFlagUsage)
	fs.Parse(args)

	if *email == "" {
		fmt.Fprintln(os.Stderr, "error: --email is required")
		fs.Usage()
		os.Exit(1)
	}

	store := openDB(*dbPath)
	defer store.Close()

	user := mustUser(store, *email)
	key, ak, err := store.GenerateAPIKey(user.ID, *name, expiryFrom(*ttl))
	if err != nil {
		fatalf("%v", err)
	}
	fmt.Printf("key_id:  %s\napi_key: %s\n", ak.ID, key)
}

func runAdminRevokeKey(args []string) {
	fs := pflag.NewFlagSet("admin revoke-key", pflag.ExitOnError)
	email := fs.String("email", "", "user email address")
	keyID := fs.String("key-id", "", "id of the key to revoke")
	dbPath := fs.String("db", "", dbFlagUsage)
	fs.Parse(args)

	if *email == "" || *keyID == "" {
		fmt.Fprintln(os.Stderr, "error: --email and --key-id are required")
		fs.Usage()
		os.Exit(1)
	}

	store := openDB(*dbPath)
	defer store.Close()

	user := mustUser(store, *email)
	if err := store.RevokeAPIKey(*keyID, user.ID); err != nil {
		fatalf("%v", err)
	}
	fmt.Printf("revoked %s\n", *keyID)
}

func runAdminListUsers(args []string) {
	fs := pflag.NewFlagSet("admin list-users", pflag.ExitOnError)
	dbPath := fs.String("db", "", dbFlagUsage)
	fs.Parse(args)

	store := openDB(*dbPath)
	defer store.Close()

	users, err := store.ListUsers()
	if err != nil {
		fatalf("%v", err)
	}
	for _, u := range users {
		n, _ := store.CountAttempts(u.ID)
		fmt.Printf("%s  %s  created %s  %s attempts\n", u.ID, u.Email, humanize.Time(u.CreatedAt), humanize.Comma(int64(n)))
		keys, err := store.ListAPIKeys(u.ID)
		if err != nil {
			fatalf("%v", err)
		}
		for _, k := range keys {
			used := "never used"
			if k.LastUsedAt != nil {
				used = "used " + humanize.Time(*k.LastUsedAt)
			}
			fmt.Printf("    %s  %-12s  %s\n", k.ID, k.Name, used)
		}
	}
}
