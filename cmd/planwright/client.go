package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// Client subcommands talk to a running server over its REST API. They
// exist so an operator can drive the approval loop from a shell
// without the dashboard.

var serverURL string

func newClientCommands() []*cobra.Command {
	commandCmd := &cobra.Command{
		Use:   "command <agent-id> <text>",
		Short: "Submit a natural-language command to an agent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postJSON(fmt.Sprintf("/api/agents/%s/command", args[0]),
				map[string]string{"command": args[1]})
		},
	}

	approveCmd := &cobra.Command{
		Use:   "approve <agent-id>",
		Short: "Approve the agent's pending plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postJSON(fmt.Sprintf("/api/agents/%s/approve", args[0]), nil)
		},
	}

	rejectCmd := &cobra.Command{
		Use:   "reject <agent-id>",
		Short: "Reject the agent's pending plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return postJSON(fmt.Sprintf("/api/agents/%s/reject", args[0]), nil)
		},
	}

	planCmd := &cobra.Command{
		Use:   "plan <agent-id>",
		Short: "Show the agent's current plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON(fmt.Sprintf("/api/agents/%s/plan", args[0]))
		},
	}

	cmds := []*cobra.Command{commandCmd, approveCmd, rejectCmd, planCmd}
	for _, c := range cmds {
		c.Flags().StringVar(&serverURL, "server", "http://localhost:18790", "server base URL")
	}
	return cmds
}

func postJSON(path string, body any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(serverURL+path, "application/json", &buf)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

func getJSON(path string) error {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(serverURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

func printResponse(resp *http.Response) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var pretty bytes.Buffer
	if json.Indent(&pretty, data, "", "  ") == nil {
		data = pretty.Bytes()
	}
	fmt.Println(string(data))
	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned %s", resp.Status)
	}
	return nil
}
