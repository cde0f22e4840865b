package paragon

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mwiater/paragon/internal/query"
	"github.com/mwiater/paragon/internal/verify"
)

var promptLabel = color.New(color.FgCyan).SprintFunc()

func runQuery(cmd *cobra.Command) error {
	cfg := GetConfig()

	model, _ := cmd.Flags().GetString("model-name")
	baseURL, _ := cmd.Flags().GetString("url")
	if baseURL == "" && cfg != nil {
		baseURL = "http://" + cfg.DeployAddress()
	}

	client, err := query.New(query.Options{BaseURL: baseURL, Model: model})
	if err != nil {
		return err
	}

	if wait, _ := cmd.Flags().GetDuration("wait"); wait > 0 {
		waitCtx, cancel := context.WithTimeout(cmd.Context(), wait)
		defer cancel()
		if err := client.WaitReady(waitCtx, 250*time.Millisecond); err != nil {
			return err
		}
	}

	prompts, _ := cmd.Flags().GetStringArray("prompt")
	if len(prompts) == 0 {
		prompts = verify.DefaultPromptTemplates()
	}

	params := samplingFromFlags(cmd, cfg)
	if cmd.Flags().Changed("max-new-tokens") {
		v, _ := cmd.Flags().GetInt("max-new-tokens")
		params.MaxNewTokens = &v
	}

	ctx := cmd.Context()
	if chat, _ := cmd.Flags().GetBool("chat"); chat {
		answer, err := client.Chat(ctx, prompts[0], params)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n", promptLabel(prompts[0]), answer)
		return nil
	}

	if stream, _ := cmd.Flags().GetBool("stream"); stream {
		last := -1
		_, err := client.Stream(ctx, prompts, params, func(prompt int, token string) {
			if prompt != last {
				if last >= 0 {
					fmt.Println()
				}
				fmt.Print(promptLabel(prompts[prompt]) + " ")
				last = prompt
			}
			fmt.Print(token + " ")
		})
		fmt.Println()
		return err
	}

	outputs, err := client.Complete(ctx, prompts, params)
	if err != nil {
		return err
	}
	for i, out := range outputs {
		fmt.Printf("%s %s\n", promptLabel(prompts[i]), out)
	}
	return nil
}
