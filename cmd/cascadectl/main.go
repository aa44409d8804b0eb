// Command cascadectl commits to and reads from a local cell.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/spf13/cobra"

	ouroboros "github.com/i5heu/ouroboros-cascade"
	"github.com/i5heu/ouroboros-cascade/pkg/holohash"
	"github.com/i5heu/ouroboros-cascade/pkg/logging"
	"github.com/i5heu/ouroboros-cascade/pkg/model"
)

// version is overridden with -ldflags "-X main.version=...".
var version = "dev"

var (
	cfgFile  string
	dataDir  string
	logLevel string
	format   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cascadectl",
	Short: "Commit to and read from a local cascade cell",
	Long: `cascadectl opens the cell stored in --data, commits signed elements
authored by the local agent and resolves addresses through the cascade.

  cascadectl commit "hello"
  cascadectl get <entry-or-header-hash>
  cascadectl link <base> <target> --tag follows`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "./cell", "cell data directory, overrides the config paths")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&format, "format", "text", "output format: text or json")

	rootCmd.AddCommand(commitCmd, deleteCmd, linkCmd, unlinkCmd)
	rootCmd.AddCommand(getCmd, detailsCmd, retrieveCmd, linksCmd, versionCmd)
}

// withCell runs fn against the started cell and the local agent.
func withCell(cmd *cobra.Command, fn func(ctx context.Context, cell *ouroboros.Cell, agent *agentState) error) error {
	conf := ouroboros.Config{}
	if cfgFile != "" {
		c, err := ouroboros.LoadConfig(cfgFile)
		if err != nil {
			return err
		}
		conf = c
	}
	if dataDir != "" || len(conf.Paths) == 0 {
		conf.Paths = []string{dataDir}
	}
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	conf.Logger = logging.New(level, cmd.ErrOrStderr())

	cell, err := ouroboros.New(conf)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	if err := cell.Start(ctx); err != nil {
		return err
	}
	defer cell.Close(context.Background())

	agent, err := loadAgent(conf.Paths[0])
	if err != nil {
		return err
	}
	return fn(ctx, cell, agent)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printElement(w io.Writer, el *model.Element) error {
	if el == nil {
		_, err := fmt.Fprintln(w, "not found")
		return err
	}
	if format == "json" {
		return printJSON(w, elementView(el))
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	v := elementView(el)
	fmt.Fprintf(tw, "header\t%s\n", v.Header)
	fmt.Fprintf(tw, "type\t%s\n", v.Type)
	fmt.Fprintf(tw, "author\t%s\n", v.Author)
	fmt.Fprintf(tw, "timestamp\t%s\n", v.Timestamp)
	if v.Entry != "" {
		fmt.Fprintf(tw, "entry\t%s\n", v.Entry)
	}
	if v.Content != "" {
		fmt.Fprintf(tw, "content\t%s\n", v.Content)
	}
	return tw.Flush()
}

type elementJSON struct {
	Header    string `json:"header"`
	Type      string `json:"type"`
	Author    string `json:"author"`
	Timestamp string `json:"timestamp"`
	Entry     string `json:"entry,omitempty"`
	Content   string `json:"content,omitempty"`
}

func elementView(el *model.Element) elementJSON {
	h := el.Header()
	v := elementJSON{
		Header:    el.HeaderHash().String(),
		Type:      h.Type().String(),
		Author:    h.Common().Author.String(),
		Timestamp: h.Common().Timestamp.String(),
	}
	if eh, _, ok := h.EntryData(); ok {
		v.Entry = eh.String()
	}
	if el.Entry != nil && el.Entry.Kind == model.EntryApp {
		v.Content = string(el.Entry.App)
	}
	return v
}

var commitCmd = &cobra.Command{
	Use:   "commit <content>",
	Short: "Commit an app entry authored by the local agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCell(cmd, func(ctx context.Context, cell *ouroboros.Cell, agent *agentState) error {
			entry, err := model.NewAppEntry([]byte(args[0]))
			if err != nil {
				return err
			}
			el, err := agent.sign(model.Create{
				HeaderCommon: agent.common(),
				EntryType:    model.EntryTypeOf(entry),
				EntryHash:    entry.Hash(),
			}, &entry)
			if err != nil {
				return err
			}
			return commit(ctx, cmd.OutOrStdout(), cell, agent, el)
		})
	},
}

func commit(ctx context.Context, w io.Writer, cell *ouroboros.Cell, agent *agentState, el model.Element) error {
	status, err := cell.Commit(ctx, el)
	if err != nil {
		return err
	}
	if err := agent.save(); err != nil {
		return err
	}
	if format == "json" {
		v := elementView(&el)
		return printJSON(w, struct {
			elementJSON
			Status string `json:"status"`
		}{v, status.String()})
	}
	if err := printElement(w, &el); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "status    %s\n", status)
	return err
}

var deleteCmd = &cobra.Command{
	Use:   "delete <header-hash>",
	Short: "Delete a Create or Update header",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := holohash.Parse[holohash.Header](args[0])
		if err != nil {
			return err
		}
		return withCell(cmd, func(ctx context.Context, cell *ouroboros.Cell, agent *agentState) error {
			el, err := cell.Retrieve(ctx, holohash.HeaderAddress(target))
			if err != nil {
				return err
			}
			if el == nil {
				return fmt.Errorf("header %s not found", target)
			}
			entry, _, ok := el.Header().EntryData()
			if !ok {
				return fmt.Errorf("header %s is a %s, not a Create or Update", target, el.Header().Type())
			}
			del, err := agent.sign(model.Delete{
				HeaderCommon:        agent.common(),
				DeletesAddress:      target,
				DeletesEntryAddress: entry,
			}, nil)
			if err != nil {
				return err
			}
			return commit(ctx, cmd.OutOrStdout(), cell, agent, del)
		})
	},
}

var (
	linkTag  string
	linkZome uint8
)

var linkCmd = &cobra.Command{
	Use:   "link <base-entry> <target-entry>",
	Short: "Link two entries",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := holohash.Parse[holohash.Entry](args[0])
		if err != nil {
			return fmt.Errorf("base: %w", err)
		}
		target, err := holohash.Parse[holohash.Entry](args[1])
		if err != nil {
			return fmt.Errorf("target: %w", err)
		}
		return withCell(cmd, func(ctx context.Context, cell *ouroboros.Cell, agent *agentState) error {
			el, err := agent.sign(model.CreateLink{
				HeaderCommon:  agent.common(),
				BaseAddress:   base,
				TargetAddress: target,
				ZomeID:        model.ZomeID(linkZome),
				Tag:           model.LinkTag(linkTag),
			}, nil)
			if err != nil {
				return err
			}
			return commit(ctx, cmd.OutOrStdout(), cell, agent, el)
		})
	},
}

var unlinkCmd = &cobra.Command{
	Use:   "unlink <create-link-hash>",
	Short: "Remove a link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		linkAdd, err := holohash.Parse[holohash.Header](args[0])
		if err != nil {
			return err
		}
		return withCell(cmd, func(ctx context.Context, cell *ouroboros.Cell, agent *agentState) error {
			el, err := cell.Retrieve(ctx, holohash.HeaderAddress(linkAdd))
			if err != nil {
				return err
			}
			if el == nil {
				return fmt.Errorf("link %s not found", linkAdd)
			}
			create, err := model.AsCreateLink(el.Header())
			if err != nil {
				return err
			}
			rm, err := agent.sign(model.DeleteLink{
				HeaderCommon:   agent.common(),
				BaseAddress:    create.BaseAddress,
				LinkAddAddress: linkAdd,
			}, nil)
			if err != nil {
				return err
			}
			return commit(ctx, cmd.OutOrStdout(), cell, agent, rm)
		})
	},
}

var getCmd = &cobra.Command{
	Use:   "get <hash>",
	Short: "Resolve an entry or header to its live element",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := holohash.ParseAnyDht(args[0])
		if err != nil {
			return err
		}
		return withCell(cmd, func(ctx context.Context, cell *ouroboros.Cell, _ *agentState) error {
			el, err := cell.Get(ctx, hash)
			if err != nil {
				return err
			}
			return printElement(cmd.OutOrStdout(), el)
		})
	},
}

var retrieveCmd = &cobra.Command{
	Use:   "retrieve <hash>",
	Short: "Return an element whether or not it is live",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := holohash.ParseAnyDht(args[0])
		if err != nil {
			return err
		}
		return withCell(cmd, func(ctx context.Context, cell *ouroboros.Cell, _ *agentState) error {
			el, err := cell.Retrieve(ctx, hash)
			if err != nil {
				return err
			}
			return printElement(cmd.OutOrStdout(), el)
		})
	},
}

var detailsCmd = &cobra.Command{
	Use:   "details <hash>",
	Short: "Show every header, delete and update known for an address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := holohash.ParseAnyDht(args[0])
		if err != nil {
			return err
		}
		return withCell(cmd, func(ctx context.Context, cell *ouroboros.Cell, _ *agentState) error {
			d, err := cell.GetDetails(ctx, hash)
			if err != nil {
				return err
			}
			return printDetails(cmd.OutOrStdout(), d)
		})
	},
}

func printDetails(w io.Writer, d model.Details) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	switch d := d.(type) {
	case *model.EntryDetails:
		if format == "json" {
			return printJSON(w, d)
		}
		fmt.Fprintf(tw, "entry\t%s\n", d.Entry.Hash())
		fmt.Fprintf(tw, "status\t%s\n", d.Status)
		for _, h := range d.Headers {
			fmt.Fprintf(tw, "header\t%s\t%s\n", h.Type(), h.Common().Timestamp)
		}
		for _, del := range d.Deletes {
			fmt.Fprintf(tw, "deleted\t%s\t%s\n", del.DeletesAddress, del.Timestamp)
		}
		for _, u := range d.Updates {
			fmt.Fprintf(tw, "updated\t%s\t%s\n", u.EntryHash, u.Timestamp)
		}
	case *model.ElementDetails:
		if format == "json" {
			return printJSON(w, struct {
				Element elementJSON    `json:"element"`
				Deletes []model.Delete `json:"deletes"`
			}{elementView(&d.Element), d.Deletes})
		}
		fmt.Fprintf(tw, "header\t%s\n", d.Element.HeaderHash())
		fmt.Fprintf(tw, "type\t%s\n", d.Element.Header().Type())
		for _, del := range d.Deletes {
			fmt.Fprintf(tw, "deleted by\t%s\t%s\n", del.Author, del.Timestamp)
		}
	default:
		fmt.Fprintln(tw, "not found")
	}
	return tw.Flush()
}

var linksAll bool

var linksCmd = &cobra.Command{
	Use:   "links <base-entry>",
	Short: "List the links on a base entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := holohash.Parse[holohash.Entry](args[0])
		if err != nil {
			return err
		}
		key := model.LinkKeyBase(base)
		if cmd.Flags().Changed("zome") {
			key = model.LinkKeyBaseZomeTag(base, model.ZomeID(linkZome), model.LinkTag(linkTag))
		}
		return withCell(cmd, func(ctx context.Context, cell *ouroboros.Cell, _ *agentState) error {
			w := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			if linksAll {
				details, err := cell.GetLinkDetails(ctx, key)
				if err != nil {
					return err
				}
				if format == "json" {
					return printJSON(w, details)
				}
				for _, d := range details {
					fmt.Fprintf(tw, "%s\t%s\t%q\tremoves=%d\n",
						d.CreateHash, d.Create.TargetAddress, string(d.Create.Tag), len(d.Deletes))
				}
				return tw.Flush()
			}
			links, err := cell.GetLinks(ctx, key)
			if err != nil {
				return err
			}
			if format == "json" {
				return printJSON(w, links)
			}
			for _, l := range links {
				fmt.Fprintf(tw, "%s\t%s\t%q\t%s\n", l.CreateLinkHash, l.Target, string(l.Tag), l.Timestamp)
			}
			return tw.Flush()
		})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	for _, c := range []*cobra.Command{linkCmd, linksCmd} {
		c.Flags().StringVar(&linkTag, "tag", "", "link tag (prefix for links)")
		c.Flags().Uint8Var(&linkZome, "zome", 0, "zome id")
	}
	linksCmd.Flags().BoolVar(&linksAll, "all", false, "include removed links with their removes")
}
