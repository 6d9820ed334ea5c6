package cli

import (
	"context"
	"fmt"
)

func (c *Cli) runLogin(ctx context.Context, args []string) error {
	c.io.Println("=== Login ===")
	c.io.Println()

	var username string
	if len(args) > 0 {
		username = args[0]
	} else {
		var err error
		username, err = c.io.ReadInput("Username: ")
		if err != nil {
			return fmt.Errorf("failed to read username: %w", err)
		}
	}
	if username == "" {
		return fmt.Errorf("username is required")
	}

	password, err := c.io.ReadPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	tokenResp, err := c.apiClient.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	if err := c.sessions.SaveToken(ctx, username, tokenResp.AccessToken); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	c.io.Println()
	c.io.Printf("Logged in as %s (token expires in %ds)\n", username, tokenResp.ExpiresIn)
	return nil
}
