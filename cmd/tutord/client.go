package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tutord/internal/fetch"
	"tutord/internal/llm"
	"tutord/pkg/types"
)

func newModelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List catalog models and whether they are downloaded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.services()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tRUNTIME\tBACKEND\tDOWNLOADED\tDEFAULT")
			for _, d := range s.cat.List() {
				def := ""
				if d.ID == s.cat.DefaultID() {
					def = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\n", d.ID, d.Name, d.RuntimeOrDefault(), d.Backend, s.store.Exists(d), def)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			files, err := s.store.Files()
			if err != nil {
				return err
			}
			for _, f := range files {
				if _, ok := s.cat.Get(f); !ok {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: not in catalog\n", f)
				}
			}
			return nil
		},
	}
}

func newFetchCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:     "fetch <model-id>",
		Short:   "Download a catalog model into the models directory",
		Example: "  tutord fetch tinyllama-1.1b-chat-v1.0.Q4_K_M.gguf",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.services()
			if err != nil {
				return err
			}
			d, ok := s.cat.Get(args[0])
			if !ok {
				return fmt.Errorf("model not found: %s", args[0])
			}
			if s.store.Exists(d) && !force {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already present at %s\n", d.ID, s.store.LocalPath(d))
				return nil
			}
			if force {
				if err := s.store.Remove(d); err != nil {
					return err
				}
			}
			if err := s.store.EnsureDir(); err != nil {
				return err
			}
			errOut := cmd.ErrOrStderr()
			path, err := s.fetcher.Fetch(cmd.Context(), d, s.store.LocalPath(d), func(pct int) {
				if pct == fetch.IndeterminateProgress {
					fmt.Fprintf(errOut, "\r%s: downloading", d.ID)
					return
				}
				fmt.Fprintf(errOut, "\r%s: %3d%%", d.ID, pct)
			})
			fmt.Fprintln(errOut)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Delete and download again when the file exists")
	return cmd
}

func newChatCmd(a *app) *cobra.Command {
	var model, lang, conv string
	cmd := &cobra.Command{
		Use:     "chat <prompt>",
		Short:   "Load a model and stream one reply to stdout",
		Example: "  tutord chat --lang Spanish \"How do I order a coffee?\"",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.services()
			if err != nil {
				return err
			}
			mgr, err := a.manager(s, nil)
			if err != nil {
				return err
			}
			defer mgr.Shutdown(cmd.Context())
			st, err := mgr.Activate(cmd.Context(), model)
			if err != nil {
				return err
			}
			if st.Kind != llm.StateReady {
				return fmt.Errorf("model not ready: %s", st)
			}
			out := &chunkPrinter{w: cmd.OutOrStdout()}
			err = mgr.Generate(cmd.Context(), types.GenerateRequest{Prompt: args[0], ConversationID: conv, TargetLanguage: lang}, out, nil)
			fmt.Fprintln(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if out.err != "" {
				return fmt.Errorf("generation failed: %s", out.err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "Catalog model id (default: catalog default)")
	cmd.Flags().StringVar(&lang, "lang", "", "Target language")
	cmd.Flags().StringVar(&conv, "conversation", "", "Conversation id")
	return cmd
}

func newGreetCmd(a *app) *cobra.Command {
	var model, lang string
	cmd := &cobra.Command{
		Use:   "greet <topic>",
		Short: "Print an opening line for a conversation topic",
		Long: "Loads the model and asks it for a greeting. When the model cannot be\n" +
			"loaded a fixed greeting is printed instead.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.services()
			if err != nil {
				return err
			}
			mgr, err := a.manager(s, nil)
			if err != nil {
				return err
			}
			defer mgr.Shutdown(cmd.Context())
			if st, err := mgr.Activate(cmd.Context(), model); err != nil {
				a.log.Warn().Err(err).Msg("activate")
			} else if st.Kind != llm.StateReady {
				a.log.Warn().Str("state", st.String()).Msg("model not ready")
			}
			text, err := mgr.Greeting(cmd.Context(), types.GreetingRequest{Topic: args[0], TargetLanguage: lang})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "Catalog model id (default: catalog default)")
	cmd.Flags().StringVar(&lang, "lang", "", "Target language")
	return cmd
}

// chunkPrinter writes the text of NDJSON chunk lines and remembers an
// in-band error line.
type chunkPrinter struct {
	w   io.Writer
	err string
}

func (p *chunkPrinter) Write(b []byte) (int, error) {
	var line struct {
		Chunk *string `json:"chunk"`
		Error string  `json:"error"`
	}
	if err := json.Unmarshal(b, &line); err != nil {
		return 0, err
	}
	if line.Chunk != nil {
		if _, err := io.WriteString(p.w, *line.Chunk); err != nil {
			return 0, err
		}
	}
	if line.Error != "" {
		p.err = line.Error
	}
	return len(b), nil
}
