package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dan-solli/goalgraph/pkg/goalgraph"
	"github.com/dan-solli/goalgraph/pkg/model"
)

func projectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Group goals by codebase",
	}

	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			paths, _ := f.GetStringSlice("path")
			aliases, _ := f.GetStringSlice("alias")
			autoDetect, _ := f.GetBool("auto-detect")
			techStack, _ := f.GetStringSlice("tech")
			agents, _ := f.GetStringSlice("agent")
			conventions, _ := f.GetStringArray("convention")
			if len(paths) == 0 {
				if wd, err := os.Getwd(); err == nil {
					paths = []string{wd}
				}
			}
			return a.withGraph(func(ctx context.Context, g *goalgraph.Goalgraph) error {
				p, err := g.CreateProject(ctx, model.ProjectInput{
					Name:          args[0],
					Paths:         paths,
					Aliases:       aliases,
					AutoDetect:    autoDetect,
					DefaultAgents: agents,
					TechStack:     techStack,
					Conventions:   conventions,
				})
				if err != nil {
					return fmt.Errorf("failed to create project: %w", err)
				}
				if ok, err := a.emit(p); ok {
					return err
				}
				a.println(check(fmt.Sprintf("Created project %s", p.ID)))
				return nil
			})
		},
	}
	cf := create.Flags()
	cf.StringSlice("path", nil, "codebase path (repeatable, default: working directory)")
	cf.StringSlice("alias", nil, "alternative path (repeatable)")
	cf.Bool("auto-detect", true, "match this project from working directories")
	cf.StringSlice("tech", nil, "technology used (repeatable)")
	cf.StringSlice("agent", nil, "default agent (repeatable)")
	cf.StringArray("convention", nil, "project convention (repeatable)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withGraph(func(ctx context.Context, g *goalgraph.Goalgraph) error {
				projects, err := g.ListProjects(ctx)
				if err != nil {
					return fmt.Errorf("failed to list projects: %w", err)
				}
				if ok, err := a.emit(projects); ok {
					return err
				}
				if len(projects) == 0 {
					a.println("No projects found")
					return nil
				}
				for _, p := range projects {
					a.printf("%-28s %-20s %s\n", p.ID, p.Name, strings.Join(p.Paths, ", "))
				}
				return nil
			})
		},
	}

	show := &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withGraph(func(ctx context.Context, g *goalgraph.Goalgraph) error {
				p, err := g.GetProject(ctx, args[0])
				if err != nil {
					return fmt.Errorf("failed to load project: %w", err)
				}
				if p == nil {
					return &model.NotFoundError{Kind: "project", ID: args[0]}
				}
				return a.printProject(p)
			})
		},
	}

	detect := &cobra.Command{
		Use:   "detect [dir]",
		Short: "Find the project a directory belongs to",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return a.withGraph(func(ctx context.Context, g *goalgraph.Goalgraph) error {
				p, err := g.DetectProject(ctx, dir)
				if err != nil {
					return fmt.Errorf("failed to detect project: %w", err)
				}
				if p == nil {
					a.println("No project matches")
					return nil
				}
				return a.printProject(p)
			})
		},
	}

	cmd.AddCommand(create, list, show, detect)
	return cmd
}
