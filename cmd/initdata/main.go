package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"telegram-credit-miniapp/internal/domain/model"
	"telegram-credit-miniapp/internal/infra/security"
)

// initdata prints a signed Telegram WebApp initData string for manual API testing:
//
//	curl "localhost:8080/balance?initData=$(initdata -user 42 -urlencode)"
func main() {
	token := flag.String("token", os.Getenv("TELEGRAM_BOT_TOKEN"), "bot token used to sign (default $TELEGRAM_BOT_TOKEN)")
	userID := flag.Int64("user", 0, "telegram user id")
	firstName := flag.String("first-name", "Test", "user.first_name")
	username := flag.String("username", "", "user.username")
	inviter := flag.Int64("ref", 0, "inviter id, sets start_param=ref_<id>")
	age := flag.Duration("age", 0, "backdate auth_date by this much")
	escape := flag.Bool("urlencode", false, "query-escape the output for use in a URL")
	flag.Parse()

	if *token == "" || *userID <= 0 {
		fmt.Fprintln(os.Stderr, "initdata: -token (or TELEGRAM_BOT_TOKEN) and -user are required")
		flag.Usage()
		os.Exit(2)
	}

	user := map[string]any{"id": *userID, "first_name": *firstName}
	if *username != "" {
		user["username"] = *username
	}
	userJSON, err := json.Marshal(user)
	if err != nil {
		fmt.Fprintf(os.Stderr, "initdata: %v\n", err)
		os.Exit(1)
	}

	v := url.Values{}
	v.Set("auth_date", strconv.FormatInt(time.Now().Add(-*age).Unix(), 10))
	v.Set("query_id", "AAH"+strconv.FormatInt(time.Now().UnixNano(), 36))
	v.Set("user", string(userJSON))
	if *inviter > 0 {
		v.Set("start_param", model.ReferralParam(*inviter))
	}

	out := security.SignInitData(v, *token)
	if *escape {
		out = url.QueryEscape(out)
	}
	fmt.Println(out)
}
