package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/yourorg/staybook/internal/identity"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "auth":
		handleAuth(args)
	case "me":
		handleMe(args)
	case "token":
		handleToken(args)
	case "admin":
		handleAdmin(args)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleAuth(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: staybook auth <register|login|logout|who>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "register":
		registerUser(args[1:])
	case "login":
		loginUser(args[1:])
	case "logout":
		logoutUser()
	case "who":
		whoAmI()
	default:
		fmt.Printf("unknown auth command: %s\n", subCmd)
	}
}

func handleMe(args []string) {
	if len(args) < 1 {
		showMe()
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "pms-role":
		showPMSRole()
	case "favorites":
		showFavorites()
	default:
		fmt.Printf("unknown me command: %s\n", subCmd)
	}
}

func handleAdmin(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: staybook admin <users>")
		return
	}

	subCmd := args[0]
	switch subCmd {
	case "users":
		listUsers(args[1:])
	default:
		fmt.Printf("unknown admin command: %s\n", subCmd)
	}
}

// handleToken mints a session token locally from SESSION_SECRET. Meant for
// development and smoke tests against a server sharing the same secret.
func handleToken(args []string) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	externalID := fs.String("external-id", "", "external principal id (subject)")
	email := fs.String("email", "", "email claim (optional)")
	ttl := fs.Duration("ttl", 15*time.Minute, "token lifetime")

	fs.Parse(args)

	if *externalID == "" {
		fmt.Println("Error: -external-id is required")
		fs.PrintDefaults()
		return
	}

	tm := identity.NewTokenManager(os.Getenv("SESSION_SECRET"), os.Getenv("SESSION_ISSUER"), *ttl)
	token, tokenID, err := tm.Issue(*externalID, *email)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "token id: %s\n", tokenID)
}

// Auth commands
func registerUser(args []string) {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	email := fs.String("email", "", "user email")
	password := fs.String("password", "", "password")
	firstName := fs.String("first-name", "", "first name")
	lastName := fs.String("last-name", "", "last name")

	fs.Parse(args)

	if *email == "" || *password == "" {
		fmt.Println("Error: email and password are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{
		"email":     *email,
		"password":  *password,
		"firstName": *firstName,
		"lastName":  *lastName,
	}

	data, _ := json.Marshal(payload)
	resp, err := http.Post(getAPIURL()+"/auth/register", "application/json", bytes.NewReader(data))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == 201 {
		fmt.Printf("✓ User registered: %s\n", *email)
		if token, ok := result["token"].(string); ok {
			saveToken(token)
		}
	} else {
		fmt.Printf("✗ Registration failed: %v\n", result)
	}
}

func loginUser(args []string) {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "user email")
	password := fs.String("password", "", "password")

	fs.Parse(args)

	if *email == "" || *password == "" {
		fmt.Println("Error: email and password are required")
		fs.PrintDefaults()
		return
	}

	payload := map[string]string{"email": *email, "password": *password}
	data, _ := json.Marshal(payload)
	resp, err := http.Post(getAPIURL()+"/auth/login", "application/json", bytes.NewReader(data))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode == 200 {
		if token, ok := result["token"].(string); ok {
			saveToken(token)
			fmt.Printf("✓ Logged in as: %s\n", *email)
		}
	} else {
		fmt.Printf("✗ Login failed: %v\n", result)
	}
}

func logoutUser() {
	req, _ := http.NewRequest("POST", getAPIURL()+"/auth/logout", nil)
	addAuthHeader(req)
	if resp, err := http.DefaultClient.Do(req); err == nil {
		resp.Body.Close()
	}
	os.Remove(tokenFile())
	fmt.Println("✓ Logged out")
}

func whoAmI() {
	resolved := fetchMe()
	if resolved == nil {
		fmt.Println("Not logged in (anonymous)")
		return
	}
	fmt.Printf("✓ %v %v <%v> (%v)\n", resolved["firstName"], resolved["lastName"], resolved["email"], resolved["roleDisplay"])
}

// Me commands
func showMe() {
	resolved := fetchMe()
	if resolved == nil {
		fmt.Println("Not logged in (anonymous)")
		return
	}
	out, _ := json.MarshalIndent(resolved, "", "  ")
	fmt.Println(string(out))
}

func showPMSRole() {
	req, _ := http.NewRequest("GET", getAPIURL()+"/me/pms-role", nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		fmt.Printf("✗ Request failed: %s\n", resp.Status)
		return
	}

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	fmt.Printf("PMS role: %v (access: %v)\n", result["role"], result["canAccess"])
}

func showFavorites() {
	req, _ := http.NewRequest("GET", getAPIURL()+"/me/favorites", nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	var result map[string][]string
	json.NewDecoder(resp.Body).Decode(&result)
	for _, id := range result["listingIds"] {
		fmt.Println(id)
	}
}

// Admin commands
func listUsers(args []string) {
	fs := flag.NewFlagSet("users", flag.ExitOnError)
	limit := fs.Int("limit", 50, "max users to list")
	offset := fs.Int("offset", 0, "pagination offset")

	fs.Parse(args)

	url := fmt.Sprintf("%s/admin/users?limit=%d&offset=%d", getAPIURL(), *limit, *offset)
	req, _ := http.NewRequest("GET", url, nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		fmt.Printf("✗ Request failed: %s\n", resp.Status)
		return
	}

	var users []map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&users)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tNAME\tCREATED")
	for _, u := range users {
		fmt.Fprintf(w, "%v\t%v\t%v %v\t%v\n", u["id"], u["email"], u["firstName"], u["lastName"], u["createdAt"])
	}
	w.Flush()
}

// Helper functions
func fetchMe() map[string]interface{} {
	req, _ := http.NewRequest("GET", getAPIURL()+"/me", nil)
	addAuthHeader(req)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil
	}
	if result["userId"] == nil || result["userId"] == "" {
		return nil
	}
	return result
}

func getAPIURL() string {
	if url := os.Getenv("STAYBOOK_API"); url != "" {
		return url
	}
	return "http://localhost:8080/api"
}

func tokenFile() string {
	home, _ := os.UserHomeDir()
	return home + "/.staybook/token"
}

func saveToken(token string) error {
	home, _ := os.UserHomeDir()
	os.MkdirAll(home+"/.staybook", 0700)
	return os.WriteFile(tokenFile(), []byte(token), 0600)
}

func loadToken() string {
	data, _ := os.ReadFile(tokenFile())
	return string(data)
}

func addAuthHeader(req *http.Request) {
	token := loadToken()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func printUsage() {
	fmt.Print(`Staybook CLI

Usage:
  staybook <command> [options]

Commands:
  auth    User authentication (register, login, logout, who)
  me      Resolved identity (me, me pms-role, me favorites)
  token   Mint a session token locally from SESSION_SECRET (development)
  admin   Admin operations (users) - users.manage permission required
  help    Show this help message

Environment Variables:
  STAYBOOK_API      API endpoint (default: http://localhost:8080/api)
  SESSION_SECRET    Shared signing secret for the token command
  SESSION_ISSUER    Issuer claim for the token command

Examples:
  staybook auth register -email user@example.com -password pass
  staybook auth login -email user@example.com -password pass
  staybook me pms-role
  staybook token -external-id usr_123 -email user@example.com
`)
}
