package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/cachekit"
	"github.com/unkn0wn-root/cachekit/codec"
	"github.com/unkn0wn-root/cachekit/keygen"
	pr "github.com/unkn0wn-root/cachekit/provider"
)

func formatTTL(d time.Duration) string {
	if d == 0 {
		return "never"
	}
	return d.String()
}

func newTTLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ttl [namespace...]",
		Short: "Print the effective TTL per namespace",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			p, diags, err := cfg.Policy()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "NAMESPACE\tTTL\n")
			if len(args) == 0 {
				fmt.Fprintf(w, "(default)\t%s\n", formatTTL(p.Default()))
				args = p.Namespaces()
			}
			for _, ns := range args {
				fmt.Fprintf(w, "%s\t%s\n", ns, formatTTL(p.Resolve(ns)))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			for _, d := range diags {
				fmt.Fprintf(cmd.ErrOrStderr(), "ignored: %v\n", d)
			}
			return nil
		},
	}
}

func newKeyCmd() *cobra.Command {
	var (
		raw bool
		ns  string
	)
	cmd := &cobra.Command{
		Use:   "key <identity> [args...]",
		Short: "Print the key derived for a call",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []keygen.Option
			if raw {
				opts = append(opts, keygen.Raw())
			}
			k, err := keygen.New(opts...).Generate(args[0], stringArgs(args[1:])...)
			if err != nil {
				return err
			}
			if ns != "" {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				k = cfg.Cache.Prefix + ns + cachekit.KeySeparator + k
			}
			fmt.Fprintln(cmd.OutOrStdout(), k)
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "do not escape separators inside arguments")
	cmd.Flags().StringVar(&ns, "namespace", "", "print the full storage key for this namespace")
	return cmd
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <namespace> <identity> [args...]",
		Short: "Read and decode a cached entry",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			ns, identity, rest := args[0], args[1], stringArgs(args[2:])
			v, ok := s.m.Get(cmd.Context(), ns, identity, rest)
			if s.lastErr != nil {
				return s.lastErr
			}
			if !ok {
				return errors.Newf("miss: %s %s", ns, identity)
			}

			out := map[string]any{"type": fmt.Sprintf("%T", v), "value": v}
			if u, isUnknown := v.(codec.Unknown); isUnknown {
				out["type"], out["value"] = u.Type, u.Value
			}
			k, _ := keygen.New().Generate(identity, rest...)
			if d, err := s.p.TTL(cmd.Context(), s.storageKey(ns, k)); err == nil {
				if d == pr.NoExpiry {
					out["ttl"] = "never"
				} else {
					out["ttl"] = d.String()
				}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

func newEvictCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "evict <namespace> <identity> [args...]",
		Short: "Remove one cached entry",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			s.m.Evict(cmd.Context(), args[0], args[1], stringArgs(args[2:]))
			return s.lastErr
		},
	}
}

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <namespace>",
		Short: "Remove every entry of a namespace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			s.m.Clear(cmd.Context(), args[0])
			return s.lastErr
		},
	}
}
