package main

import (
	"context"
	"fmt"
	"time"
)

// setToken validates the token against the upstream API and stores it sealed,
// same as the user-facing endpoint.
func (cli *commandLine) setToken(userID, baseURL, rawToken string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tok, err := cli.tokenSvc.Set(ctx, userID, baseURL, rawToken)
	if err != nil {
		return err
	}
	fmt.Printf("token stored for user %s (base URL: %s)\n", userID, tok.BaseURL)
	return nil
}
