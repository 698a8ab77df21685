// Package askcmder provides the ask command: a terminal stand-in for the
// browser widget that asks a question through a running relay.
package askcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bytewidget/cozerelay/pkg/answer"
	"github.com/bytewidget/cozerelay/pkg/cliui"
	"github.com/bytewidget/cozerelay/pkg/config"
	"github.com/bytewidget/cozerelay/pkg/devlog"
	"github.com/bytewidget/cozerelay/pkg/devlog/httppub"
	"github.com/bytewidget/cozerelay/pkg/devlog/kafkapub"
	"github.com/bytewidget/cozerelay/pkg/devlog/nop"
	"github.com/bytewidget/cozerelay/pkg/logger"
	"github.com/bytewidget/cozerelay/pkg/relayclient"
)

type askCommander struct {
	target         string
	devlogProvider string
	devlogTarget   string
	kafkaBrokers   string
	kafkaTopic     string
	plain          bool
	debug          bool

	logger *slog.Logger
}

// variantAnswer is the outcome of one prompt variant's chat turn.
type variantAnswer struct {
	text        string
	recommended []string
	err         error
}

const askLongDesc string = `Ask a question through a running cozerelay server.

Like the browser widget, the question is asked twice in parallel: once for
a short answer shown immediately, once for a detailed answer rendered as
markdown. The detailed answer is saved back to the relay's history.

Examples:
  cozerelay ask "What are the opening hours?"
  cozerelay ask --target http://relay.internal:8090 "How do refunds work?"
  cozerelay ask --plain "What is the return policy?"`

const askShortDesc string = "Ask a question through a running relay"

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, []string{
				config.FlagTarget,
				config.FlagDevlogProvider,
				config.FlagDevlogTarget,
				config.FlagKafkaBrokers,
				config.FlagKafkaTopic,
			})

			cmder.target = v.GetString("client.target")
			cmder.devlogProvider = v.GetString("devlog.provider")
			cmder.devlogTarget = v.GetString("devlog.target")
			cmder.kafkaBrokers = v.GetString("devlog.kafka_brokers")
			cmder.kafkaTopic = v.GetString("devlog.kafka_topic")
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run(args[0])
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagTarget, &cmder.target)
	config.AddStringFlag(cmd, config.Flags, config.FlagDevlogProvider, &cmder.devlogProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagDevlogTarget, &cmder.devlogTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaBrokers, &cmder.kafkaBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.kafkaTopic)
	cmd.Flags().BoolVar(&cmder.plain, "plain", false, "Print the detailed answer without markdown rendering")

	return cmd
}

func (c *askCommander) run(question string) error {
	c.logger = logger.New(logger.WithPretty(true), logger.WithDebug(c.debug), logger.WithWriter(os.Stderr))

	question = strings.TrimSpace(question)
	if question == "" {
		return errors.New("question must not be empty")
	}

	publisher := c.createPublisher()
	defer publisher.Close()

	client := &relayclient.Client{
		Target:    c.target,
		Publisher: publisher,
	}

	fmt.Printf("\n  %s %s\n\n", cliui.QuestionStyle.Render("?"), question)

	// Both variants in flight at once, the way the widget does it. Order of
	// arrival between the two is independent; display order is fixed.
	ctx := context.Background()
	shortCh := make(chan variantAnswer, 1)
	longCh := make(chan variantAnswer, 1)
	go func() { shortCh <- c.fetch(ctx, client, relayclient.ShortPrompt(question)) }()
	go func() { longCh <- c.fetch(ctx, client, relayclient.LongPrompt(question)) }()

	short := <-shortCh
	if short.err != nil {
		c.logger.Debug("short answer failed", "error", short.err)
		fmt.Printf("  %s %s\n\n", cliui.FailMark, cliui.DimStyle.Render("failed to get short answer"))
	} else {
		fmt.Printf("  %s\n\n", short.text)
	}

	long := <-longCh
	if long.err != nil {
		c.logger.Debug("detailed answer failed", "error", long.err)
		fmt.Printf("  %s %s\n\n", cliui.FailMark, cliui.DimStyle.Render("failed to get detailed answer"))
	} else {
		c.printDetailed(long.text)
	}

	recommended := append(short.recommended, long.recommended...)
	if len(recommended) > 0 {
		fmt.Printf("  %s\n", cliui.KeyStyle.Render("You could also ask:"))
		for _, q := range recommended {
			fmt.Printf("    %s %s\n", cliui.DimStyle.Render("•"), q)
		}
		fmt.Println()
	}

	if short.err != nil && long.err != nil {
		return errors.New("no answer received")
	}

	// Save the best answer we have back to the relay's history.
	saved := long.text
	if long.err != nil {
		saved = short.text
	}
	if err := client.UpdateAnswer(ctx, question, saved); err != nil {
		c.logger.Debug("could not save answer to history", "error", err)
	}

	return nil
}

// fetch runs one chat turn and splits its answers into the main text and
// recommended follow-up questions.
func (c *askCommander) fetch(ctx context.Context, client *relayclient.Client, prompt string) variantAnswer {
	stream, err := client.Ask(ctx, prompt, nil)
	if err != nil {
		return variantAnswer{err: err}
	}
	defer stream.Close()

	var texts, recommended []string
	for {
		text, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return variantAnswer{err: err}
		}

		if answer.IsRecommendedQuestion(text) {
			recommended = append(recommended, text)
			continue
		}
		texts = append(texts, text)
	}

	if len(texts) == 0 {
		return variantAnswer{recommended: recommended, err: errors.New("stream ended without an answer")}
	}

	return variantAnswer{
		text:        strings.Join(texts, "\n\n"),
		recommended: recommended,
	}
}

func (c *askCommander) printDetailed(text string) {
	if !c.plain {
		if rendered, err := cliui.RenderMarkdown(text); err == nil {
			fmt.Print(rendered)
			fmt.Println()
			return
		}
	}
	fmt.Printf("  %s\n\n", text)
}

// createPublisher selects the answer-telemetry backend. Anything unknown
// falls back to the nop publisher rather than failing the question.
func (c *askCommander) createPublisher() devlog.Publisher {
	switch c.devlogProvider {
	case "http":
		target := c.devlogTarget
		if target == "" {
			target = strings.TrimRight(c.target, "/") + "/__log"
		}
		return httppub.NewPublisher(target, nil)
	case "kafka":
		brokers := strings.Split(c.kafkaBrokers, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		return kafkapub.NewPublisher(brokers, c.kafkaTopic)
	default:
		return nop.NewPublisher()
	}
}
