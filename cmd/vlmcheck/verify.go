package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"vlmcheck/internal/common/fsutil"
	"vlmcheck/internal/verifier"
	"vlmcheck/pkg/types"
)

func newVerifyCmd(a *app) *cobra.Command {
	var imagePath, task string
	cmd := &cobra.Command{
		Use:     "verify",
		Short:   "Verify one image against a task description and print the JSON result",
		Example: "  vlmcheck verify --image crowd.jpg --task '出现人员拥挤的情况。'",
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := fsutil.ReadFileLimit(imagePath, a.settings.MaxUploadBytes)
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}

			client := a.newClient()
			defer client.Close()
			resp, err := a.newVerifier(client).Verify(cmd.Context(), bytes.NewReader(img), task)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetEscapeHTML(false)
			enc.SetIndent("", "  ")
			if err != nil {
				status := verifier.StatusCode(err)
				_ = enc.Encode(types.ErrorResponse{Error: verifier.PublicMessage(err), Code: status})
				return fmt.Errorf("verification failed (%d %s): %w", status, http.StatusText(status), err)
			}
			return enc.Encode(resp)
		},
	}
	cmd.Flags().StringVar(&imagePath, "image", "", "Path to the image file")
	cmd.Flags().StringVar(&task, "task", "", "Task description (1 to 500 characters)")
	_ = cmd.MarkFlagRequired("image")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}

func newPingCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the upstream VLM endpoint answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := a.newClient()
			defer client.Close()
			if err := client.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("upstream %s unavailable: %w", a.settings.VLMBaseURL, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok %s\n", a.settings.VLMBaseURL)
			return nil
		},
	}
}
