package main

import (
	"fmt"
	"os"
	"time"

	"github.com/MarineRcher/notAlone-sub002/auth"
	"github.com/MarineRcher/notAlone-sub002/config"
	"github.com/MarineRcher/notAlone-sub002/globals"
	"github.com/MarineRcher/notAlone-sub002/persistence"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

// A very simple CLI tool for inspecting persisted relay data and minting
// development credentials.

var (
	configPath   string
	globalConfig *config.Config
	persister    persistence.Persister
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "notalone-relay-admin",
		Short: "administration helper for the notAlone group relay",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			flagSet := config.GetFlagSet()
			cfg, err := config.ReadConfiguration(configPath, flagSet)
			if err != nil {
				return err
			}
			if cfg.LogLevel != "" {
				globals.AppLogger.SetLevel(hclog.LevelFromString(cfg.LogLevel))
			}
			globalConfig = cfg
			persister, err = persistence.NewPersister(cfg)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if persister != nil {
				persister.Close()
			}
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file or directory")

	tokenCmd := &cobra.Command{
		Use:   "token <userId> <login>",
		Short: "mint a signed development token",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if globalConfig.AuthConfig.JWTSecret == "" {
				return fmt.Errorf("no jwt secret configured")
			}
			claims := auth.Claims{
				Id:    args[0],
				Login: args[1],
				RegisteredClaims: jwt.RegisteredClaims{
					ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
					IssuedAt:  jwt.NewNumericDate(time.Now()),
				},
			}
			token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(globalConfig.AuthConfig.JWTSecret))
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}

	groupsCmd := &cobra.Command{
		Use:   "groups",
		Short: "list persisted groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			if persister == nil {
				return fmt.Errorf("no persistence configured")
			}
			groups, err := persister.GetGroups()
			if err != nil {
				return err
			}
			for _, group := range groups {
				fmt.Printf("%s\t%s\t%s\n", group.Id, group.Name, group.CreatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}

	messagesCmd := &cobra.Command{
		Use:   "messages <groupId>",
		Short: "dump stored (ciphertext) messages for a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if persister == nil {
				return fmt.Errorf("no persistence configured")
			}
			messages, err := persister.LoadMessages(args[0], 0)
			if err != nil {
				return err
			}
			for _, msg := range messages {
				fmt.Printf("%s\t%s\t%s\t%s\n", msg.Created.Format(time.RFC3339), msg.Id, msg.SenderId, msg.Payload)
			}
			return nil
		},
	}

	rootCmd.AddCommand(tokenCmd, groupsCmd, messagesCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
