// Command ezflow runs the dataflow engine: with no argument it starts
// an interactive REPL (driven from rank 0 and broadcast to the pool via
// the engine's own pipeline); with a single argument it executes that
// query and exits. Exit code 0 on success, 1 on a raised core error,
// 2 on an unknown failure.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	ezflow "github.com/go-ezflow/ezflow"
	"github.com/go-ezflow/ezflow/cluster"
	"github.com/go-ezflow/ezflow/dataflow"
	"github.com/go-ezflow/ezflow/karta"
	"github.com/go-ezflow/ezflow/logging"
	"github.com/go-ezflow/ezflow/query"
)

func initConfig() {
	pflag.Int("rank", 0, "rank of this process in the peer list")
	pflag.StringSlice("peers", nil, "host:port of every rank, in rank order")
	pflag.Int("np", 1, "in-memory pool size when no peer list is given")
	pflag.String("log", "warning", "log mode: none, info, warning, error, all")
	pflag.Bool("strict", false, "drop unparsable rows instead of null-padding")
	pflag.Bool("allow-load-cmd", false, "permit where-clause load-cmd parsing")
	pflag.Parse()
	viper.BindPFlags(pflag.CommandLine)
	viper.SetEnvPrefix("ezflow")
	viper.AutomaticEnv()
}

func logMode(name string) logging.Mode {
	switch strings.ToLower(name) {
	case "none":
		return logging.ModeNone
	case "info":
		return logging.ModeInfo | logging.ModeWarning | logging.ModeError
	case "error":
		return logging.ModeError
	case "all":
		return logging.ModeAll
	default:
		return logging.ModeError | logging.ModeWarning
	}
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "unknown error: %v\n", r)
			os.Exit(2)
		}
	}()
	initConfig()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var k *karta.Karta
	peers := viper.GetStringSlice("peers")
	if len(peers) > 1 {
		node, err := cluster.NewNode(&cluster.NodeOptions{
			Rank:  viper.GetInt("rank"),
			Peers: peers,
		})
		if err != nil {
			return err
		}
		if err := node.Start(); err != nil {
			return err
		}
		defer node.Stop()
		k = node.Karta()
	} else {
		pool := cluster.NewPool(viper.GetInt("np"))
		k = karta.New(pool.Comm(0), logging.New(0))
	}
	k.Logger().SetMode(logMode(viper.GetString("log")))

	sess := query.NewSession(k)
	sess.Strict = viper.GetBool("strict")
	sess.AllowLoadCmd = viper.GetBool("allow-load-cmd")
	all := make([]int, k.NProc())
	for i := range all {
		all[i] = i
	}
	sess.RunReq = karta.Ranks(all...)

	if args := pflag.Args(); len(args) == 1 {
		return sess.Exec(args[0])
	}
	return repl(k, sess)
}

// repl reads queries on rank 0 and distributes them through the engine
// itself: a rise pinned to rank 0 produces lines, and a duplicated
// task-parallel filter executes each line on every rank.
func repl(k *karta.Karta, sess *query.Session) error {
	k.Logger().Print0("\nType queries... or [q or Q] to quit")
	k.Logger().Print0(`e.x.: file "t" | $xz = $1 + ($2 * 3) | where ` +
		`($xz == 5.0 * 2 and $1 > $4 / 2) | show` + "\n")

	prompt := color.New(color.FgCyan).SprintFunc()
	errc := color.New(color.FgRed).SprintFunc()
	in := bufio.NewReader(os.Stdin)
	source := ezflow.RiseFunc(func() ([]ezflow.Row, error) {
		fmt.Print(prompt("> "))
		line, err := in.ReadString('\n')
		line = strings.TrimSpace(line)
		if err != nil || line == "" || line[0] == 'q' || line[0] == 'Q' {
			return nil, nil
		}
		if cerr := sess.Check(line); cerr != nil {
			fmt.Println(errc(cerr.Error()))
			line = ""
		}
		return []ezflow.Row{ezflow.R(line)}, nil
	})

	var execErr error
	_, err := dataflow.Rise(source, 1).
		Prll(karta.Ranks(0), ezflow.ModeNone).
		Filter(func(in ezflow.Row) (bool, error) {
			line := in[0].(string)
			if line == "" {
				return false, nil
			}
			if err := sess.Exec(line); err != nil {
				k.Logger().Log(logging.ModeError, "%s", err.Error())
				execErr = err
				return false, nil
			}
			return true, nil
		}).
		Prll(karta.Ratio(1.0), ezflow.ModeTask|ezflow.ModeDupe).
		Run(k, karta.All())
	if err != nil {
		return err
	}
	// a failed query is reported inline, not raised; the REPL's own
	// teardown decides the exit code
	_ = execErr
	return nil
}
