package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"studyai-backend/internal/config"
	"studyai-backend/internal/middleware"
	"studyai-backend/internal/models"
	"studyai-backend/internal/services"
)

type modelFactory func(ctx context.Context) (services.Model, *config.Config, func() error, error)

type cliOptions struct {
	output   string
	text     string
	maxBytes int64
}

func newRootCmd(newModel modelFactory) *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:          "studyctl",
		Short:        "Extract text from documents and generate study materials",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.output {
			case "json", "yaml":
				return nil
			default:
				return fmt.Errorf("unknown --output %q (expected json or yaml)", opts.output)
			}
		},
	}
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "json", "output format: json or yaml")
	root.PersistentFlags().Int64Var(&opts.maxBytes, "max-bytes", services.DefaultMaxExtractBytes, "largest document accepted")

	root.AddCommand(
		newExtractCmd(opts),
		newGenerateCmd(opts, newModel),
		newConceptsCmd(opts, newModel),
		newTokenCmd(opts),
	)
	return root
}

func newExtractCmd(opts *cliOptions) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Print the text of a .txt, .pdf or .docx file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, format, err := extractFile(cmd.Context(), args[0], opts.maxBytes)
			if err != nil {
				return err
			}
			if raw {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), text)
				return err
			}
			return writeOutput(cmd.OutOrStdout(), opts.output, models.ExtractTextResponse{Text: text, Format: string(format)})
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print only the extracted text")
	return cmd
}

func newGenerateCmd(opts *cliOptions, newModel modelFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate [file]",
		Short: "Generate a summary, key concepts and flashcards",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readContent(cmd.Context(), opts, args)
			if err != nil {
				return err
			}
			gen, closeFn, err := newGenerator(cmd.Context(), newModel)
			if err != nil {
				return err
			}
			defer closeFn()

			materials, err := gen.Generate(cmd.Context(), content)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), opts.output, materials)
		},
	}
	cmd.Flags().StringVar(&opts.text, "text", "", "generate from this text instead of a file")
	return cmd
}

func newConceptsCmd(opts *cliOptions, newModel modelFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "concepts [file]",
		Short: "List the key concepts of a document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readContent(cmd.Context(), opts, args)
			if err != nil {
				return err
			}
			gen, closeFn, err := newGenerator(cmd.Context(), newModel)
			if err != nil {
				return err
			}
			defer closeFn()

			concepts, err := gen.ExtractConcepts(cmd.Context(), content)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), opts.output, models.ExtractConceptsResponse{KeyConcepts: concepts})
		},
	}
	cmd.Flags().StringVar(&opts.text, "text", "", "extract from this text instead of a file")
	return cmd
}

// newTokenCmd mints a bearer token for a server running with JWT_SECRET.
func newTokenCmd(opts *cliOptions) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a bearer token with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			auth := middleware.NewJWTAuth(os.Getenv("JWT_SECRET"))
			if auth == nil {
				return errors.New("JWT_SECRET is not set")
			}
			token, err := auth.GenerateToken(subject, ttl)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), opts.output, map[string]string{"token": token, "subject": subject})
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "owner of the study sets created with this token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	cmd.MarkFlagRequired("subject")
	return cmd
}

func newGenerator(ctx context.Context, newModel modelFactory) (*services.StudyGenerator, func() error, error) {
	model, cfg, closeFn, err := newModel(ctx)
	if err != nil {
		return nil, nil, err
	}
	opts := services.GeneratorOptions{}
	if cfg != nil {
		opts.Timeout = cfg.LLMTimeout
		opts.MaxContentChars = cfg.MaxContentChars
	}
	return services.NewStudyGenerator(model, opts), closeFn, nil
}

// readContent prefers --text, then the file argument.
func readContent(ctx context.Context, opts *cliOptions, args []string) (string, error) {
	if opts.text != "" {
		return opts.text, nil
	}
	if len(args) == 0 {
		return "", errors.New("pass a file or --text")
	}
	text, _, err := extractFile(ctx, args[0], opts.maxBytes)
	return text, err
}

func extractFile(ctx context.Context, path string, maxBytes int64) (string, services.Format, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	format, err := services.FormatFromFilename(path, head)
	if err != nil {
		return "", "", err
	}

	text, err := services.NewFileExtractService(maxBytes).Extract(ctx, services.NewEncodedBlob(string(format), data))
	if err != nil {
		return "", "", err
	}
	return text, format, nil
}

func writeOutput(w io.Writer, format string, v interface{}) error {
	if format == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
