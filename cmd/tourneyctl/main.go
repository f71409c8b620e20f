package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/park285/Cheese-Tournament/internal/builder"
	appcfg "github.com/park285/Cheese-Tournament/internal/config"
	"github.com/park285/Cheese-Tournament/internal/movecodec"
	"github.com/park285/Cheese-Tournament/internal/storage"
	"github.com/park285/Cheese-Tournament/internal/variant"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

var families = []movecodec.Family{movecodec.Standard, movecodec.Flipping, movecodec.Duck}

func familyByName(name string) (movecodec.Family, error) {
	for _, f := range families {
		if f.String() == strings.ToLower(strings.TrimSpace(name)) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown codec family %q", name)
}

func familyFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "family",
		Aliases: []string{"f"},
		Value:   movecodec.Standard.String(),
		Usage:   "codec family: standard, flipping or duck",
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:   "tourneyctl",
		Usage:  "operator tools for the tournament engine",
		Writer: out,
		Commands: []*cli.Command{
			variantsCommand(),
			encodeCommand(),
			decodeCommand(),
			replayCommand(),
			latestCommand(),
		},
	}
}

func variantsCommand() *cli.Command {
	return &cli.Command{
		Name:  "variants",
		Usage: "list offered variants",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "prod", Usage: "hide variants not offered in production"},
			&cli.BoolFlag{Name: "all", Usage: "include retired variants"},
		},
		Action: func(c *cli.Context) error {
			list := variant.Offered(c.Bool("prod"))
			if c.Bool("all") {
				list = variant.All()
			}
			tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CODE\tSERVER NAME\tDISPLAY\tFAMILY")
			for _, d := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Code, d.ServerName(), d.DisplayName, d.Family)
			}
			return tw.Flush()
		},
	}
}

func encodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "encode",
		Usage:     "encode moves into the compact storage form",
		ArgsUsage: "<move>...",
		Flags:     []cli.Flag{familyFlag()},
		Action: func(c *cli.Context) error {
			f, err := familyByName(c.String("family"))
			if err != nil {
				return err
			}
			codes, err := movecodec.EncodeLog(f, c.Args().Slice())
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, strings.Join(codes, " "))
			return nil
		},
	}
}

func decodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "decode stored move codes",
		ArgsUsage: "<code>...",
		Flags:     []cli.Flag{familyFlag()},
		Action: func(c *cli.Context) error {
			f, err := familyByName(c.String("family"))
			if err != nil {
				return err
			}
			moves, err := movecodec.DecodeLog(f, c.Args().Slice())
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, strings.Join(moves, " "))
			return nil
		},
	}
}

func withDeps(c *cli.Context, fn func(ctx context.Context, d *builder.Deps) error) error {
	cfg, err := appcfg.Load()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()
	d, err := builder.New(ctx, cfg, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer func() { _ = d.Close(context.Background()) }()
	return fn(ctx, d)
}

func timeoutFlag() cli.Flag {
	return &cli.DurationFlag{Name: "timeout", Value: 30 * time.Second, Usage: "overall deadline"}
}

func replayCommand() *cli.Command {
	return &cli.Command{
		Name:      "replay",
		Usage:     "rebuild a stored tournament and print its standings",
		ArgsUsage: "<tournament id>",
		Flags: []cli.Flag{
			timeoutFlag(),
			&cli.IntFlag{Name: "top", Value: 20, Usage: "rows to print, 0 for all"},
		},
		Action: func(c *cli.Context) error {
			id := strings.TrimSpace(c.Args().First())
			if id == "" {
				return cli.Exit("tournament id required", 2)
			}
			return withDeps(c, func(ctx context.Context, d *builder.Deps) error {
				t, err := d.Registry.Get(ctx, id)
				if err != nil {
					return err
				}
				p, cnt := t.Params(), t.Counters()
				w := c.App.Writer
				fmt.Fprintf(w, "%s  %s  %s  %s  players=%d games=%d (+%d -%d =%d) berserks=%d\n",
					p.ID, p.Name, p.System, t.Status(), t.NbPlayers(),
					cnt.GamesFinished, cnt.WhiteWins, cnt.BlackWins, cnt.Draws, cnt.Berserks)
				if winner := t.Winner(); winner != "" {
					fmt.Fprintf(w, "winner: %s\n", winner)
				}
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "RANK\tPLAYER\tSCORE\tPERF")
				for _, e := range t.Standings(c.Int("top")) {
					fmt.Fprintf(tw, "%d\t%s\t%d\t%d\n", e.Rank, e.UserID, e.Score, e.Performance)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				if n := len(t.Ongoing()); n > 0 {
					fmt.Fprintf(w, "ongoing games: %d\n", n)
				}
				return nil
			})
		},
	}
}

func latestCommand() *cli.Command {
	return &cli.Command{
		Name:  "latest",
		Usage: "list recent tournaments by lifecycle",
		Flags: []cli.Flag{timeoutFlag()},
		Action: func(c *cli.Context) error {
			return withDeps(c, func(ctx context.Context, d *builder.Deps) error {
				l, err := d.Registry.LatestTournaments(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "GROUP\tID\tNAME\tSTARTS\tWINNER")
				printGroup(tw, "started", l.Started)
				printGroup(tw, "scheduled", l.Scheduled)
				printGroup(tw, "completed", l.Completed)
				return tw.Flush()
			})
		},
	}
}

func printGroup(w io.Writer, group string, recs []storage.TournamentRecord) {
	for _, r := range recs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", group, r.ID, r.Name, r.StartsAt.Format(time.RFC3339), r.Winner)
	}
}
