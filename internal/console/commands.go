package console

import (
	"context"
	"fmt"
	"strings"

	"codegame/internal/model"
	"codegame/internal/sandbox"

	"github.com/urfave/cli/v3"
)

func (c *Console) commandTree() *cli.Command {
	return &cli.Command{
		Name:      "console",
		Writer:    c.out,
		ErrWriter: c.out,
		HideHelp:  true,
		Commands: []*cli.Command{
			{
				Name:  "start",
				Usage: "Start the contest",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "duration", Aliases: []string{"d"}, Value: c.cfg.DefaultDuration, Usage: "contest length in seconds"},
					&cli.IntFlag{Name: "problems", Aliases: []string{"p"}, Value: c.cfg.DefaultProblems, Usage: "number of problems"},
				},
				Action: c.start,
			},
			{Name: "stop", Usage: "Stop the contest", Action: c.stop},
			{Name: "reset", Usage: "Reset the contest", Action: c.reset},
			{Name: "exit", Usage: "Exit the program", Action: func(context.Context, *cli.Command) error {
				c.info.Fprintln(c.out, "Exiting")
				return ErrExit
			}},
			{Name: "list", Usage: "List all sandboxes", Action: c.list},
			{Name: "languages", Usage: "List all supported languages", Action: c.languages},
			{Name: "problems", Usage: "List all available problems", Action: c.availableProblems},
			{Name: "add", Usage: "Add a new sandbox", ArgsUsage: "<url>", Action: c.add},
			{Name: "remove", Usage: "Remove a sandbox", ArgsUsage: "<node_id>", Action: c.remove},
			{Name: "contestants", Usage: "List all contestants", Action: c.contestants},
			{Name: "help", Usage: "Display this help message", Action: c.help},
		},
	}
}

func (c *Console) report(command string, ok bool, detail string) {
	if ok {
		c.ok.Fprintf(c.out, "%s - Success%s\n", command, detail)
		return
	}
	c.fail.Fprintf(c.out, "%s - Failed%s\n", command, detail)
}

func (c *Console) start(_ context.Context, cmd *cli.Command) error {
	duration, count := cmd.Int("duration"), cmd.Int("problems")
	c.report("start", c.holder.Current().Start(duration, count), fmt.Sprintf(" (duration %ds, %d problems)", duration, count))
	return nil
}

func (c *Console) stop(context.Context, *cli.Command) error {
	c.report("stop", c.holder.Current().Stop(), "")
	return nil
}

func (c *Console) reset(context.Context, *cli.Command) error {
	c.holder.Reset()
	c.report("reset", true, "")
	return nil
}

func (c *Console) list(context.Context, *cli.Command) error {
	nodes := c.fleet.Nodes()
	if len(nodes) == 0 {
		c.info.Fprintln(c.out, "No sandboxes")
		return nil
	}
	for _, n := range nodes {
		if n.Health != sandbox.HealthReady {
			c.fail.Fprintf(c.out, "%s (%s) - %s\n", n.ID, n.Endpoint, strings.ToUpper(n.Health.String()))
			continue
		}
		c.ok.Fprintf(c.out, "%s (%s) - Version: %s - In queue: %d\n", n.ID, n.Endpoint, n.Version, n.Inflight)
	}
	return nil
}

func (c *Console) languages(context.Context, *cli.Command) error {
	c.info.Fprintf(c.out, "%v\n", c.fleet.Languages())
	return nil
}

func (c *Console) availableProblems(context.Context, *cli.Command) error {
	problems := c.problems.AvailableProblems()
	names := make([]string, 0, len(problems))
	for _, p := range problems {
		names = append(names, p.Name)
	}
	c.info.Fprintf(c.out, "%v\n", names)
	return nil
}

func (c *Console) add(_ context.Context, cmd *cli.Command) error {
	endpoint := cmd.Args().First()
	if endpoint == "" {
		c.report("add", false, ": usage add <url>")
		return nil
	}
	id, err := c.fleet.Add(endpoint)
	if err != nil {
		c.report("add", false, ": "+err.Error())
		return nil
	}
	c.report("add", true, ": "+id)
	return nil
}

func (c *Console) remove(_ context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		c.report("remove", false, ": usage remove <node_id>")
		return nil
	}
	if !c.fleet.Remove(id) {
		c.fail.Fprintln(c.out, "remove - Not found")
		return nil
	}
	c.report("remove", true, "")
	return nil
}

func (c *Console) contestants(context.Context, *cli.Command) error {
	engine := c.holder.Current()
	started := engine.Progress() != model.ProgressNotStarted
	problems := engine.Problems()
	standings := engine.Standings()
	if len(standings) == 0 {
		c.info.Fprintln(c.out, "No contestants")
		return nil
	}
	for _, s := range standings {
		colorName := "none"
		if s.Color != nil {
			colorName = *s.Color
		}
		fmt.Fprintf(c.out, "%s - %s - %s\n", s.UID, s.Name, colorName)
		if !started {
			continue
		}
		var b strings.Builder
		fmt.Fprintf(&b, " └ Score: %d", s.Score)
		for _, p := range problems {
			status, ok := s.Progress[p]
			if !ok {
				status = model.StatusPending
			}
			fmt.Fprintf(&b, " - %s: %s", p, status)
		}
		if s.Finished > 0 {
			fmt.Fprintf(&b, " - Finished at %dm %ds", s.Finished/60, s.Finished%60)
		}
		fmt.Fprintln(c.out, b.String())
	}
	return nil
}

func (c *Console) help(context.Context, *cli.Command) error {
	c.info.Fprint(c.out, `List of available commands:

--- General commands ---
languages - List all supported languages
problems - List all available problems
help - Display this help message
exit - Exit the program

--- Sandbox manage commands ---
list - List all sandboxes
add <url> - Add a new sandbox
remove <node_id> - Remove a sandbox

--- Contest manage commands ---
contestants - List all contestants
start [-d <duration>] [-p <number of problems>] - Start the contest
stop - Stop the contest
reset - Reset the contest
`)
	return nil
}
