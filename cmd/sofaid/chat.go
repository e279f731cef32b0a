package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newChatCmd() *cobra.Command {
	var (
		url       string
		modelName string
		session   string
		apiKey    string
		askKey    bool
		maxTokens int
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat against a running sofaid server",
		Long:  "Opens a local REPL that posts each line to the server's /chat endpoint.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if askKey {
				fmt.Fprint(cmd.OutOrStdout(), "API key: ")
				keyBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
				fmt.Fprintln(cmd.OutOrStdout())
				if err != nil {
					return fmt.Errorf("read API key: %w", err)
				}
				apiKey = string(keyBytes)
			}
			return runChat(cmd, url, modelName, session, apiKey, maxTokens)
		},
	}

	cmd.Flags().StringVar(&url, "url", "http://127.0.0.1:8000", "sofaid server base URL")
	cmd.Flags().StringVarP(&modelName, "model", "m", "", "logical model name (server default when empty)")
	cmd.Flags().StringVarP(&session, "session", "s", "cli", "session identifier")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key for the x-api-key header")
	cmd.Flags().BoolVar(&askKey, "ask-key", false, "prompt for the API key without echo")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "max new tokens per reply (server default when 0)")
	return cmd
}

type chatPayload struct {
	Message   string `json:"message"`
	MaxTokens int    `json:"maxTokens,omitempty"`
	Model     string `json:"model,omitempty"`
}

func runChat(cmd *cobra.Command, url, modelName, session, apiKey string, maxTokens int) error {
	out := cmd.OutOrStdout()
	client := &http.Client{Timeout: 5 * time.Minute}
	scanner := bufio.NewScanner(cmd.InOrStdin())

	fmt.Fprintf(out, "Chatting with %s (session %q). /quit to exit.\n", url, session)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			break
		}

		reply, err := postChat(client, url, apiKey, session, chatPayload{
			Message:   line,
			MaxTokens: maxTokens,
			Model:     modelName,
		})
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "%s\n", reply)
	}
	return scanner.Err()
}

func postChat(client *http.Client, url, apiKey, session string, payload chatPayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(url, "/")+"/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-session-id", session)
	if apiKey != "" {
		req.Header.Set("x-api-key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var decoded struct {
		Reply string `json:"reply"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if decoded.Error != "" {
			return "", fmt.Errorf("server returned %d: %s", resp.StatusCode, decoded.Error)
		}
		return "", fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return decoded.Reply, nil
}
