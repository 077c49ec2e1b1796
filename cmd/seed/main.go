package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/debemdeboas/site-builder/internal/db"
	"github.com/debemdeboas/site-builder/internal/repository"
	"github.com/debemdeboas/site-builder/internal/templates"
	"github.com/debemdeboas/site-builder/internal/util/compression"
)

var (
	flagName        string
	flagDatabase    string
	flagCompression string
)

type App struct {
	Out io.Writer

	// The renderer follows Out: colours on a terminal, plain text when piped.
	renderer *lipgloss.Renderer
}

func newApp(out io.Writer) *App {
	return &App{Out: out, renderer: lipgloss.NewRenderer(out)}
}

type styles struct {
	name    lipgloss.Style
	id      lipgloss.Style
	success lipgloss.Style
}

func (app *App) styles() styles {
	return styles{
		name:    app.renderer.NewStyle().Foreground(lipgloss.Color("63")).Bold(true),
		id:      app.renderer.NewStyle().Faint(true),
		success: app.renderer.NewStyle().Foreground(lipgloss.Color("212")),
	}
}

func main() {
	if err := newRootCmd(newApp(os.Stdout)).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "seed",
		Short: "Create sites from the built-in templates",
		Long: `seed writes a new site and the base records of its elements into the
sqlite database used by the site builder.

Examples:
  seed list
  seed create restaurant --name "Trattoria da Mario"
  seed create transport --name "Express Freight" --db ./data/site.db`,
		SilenceUsage: true,
	}

	root.AddCommand(newListCmd(app), newCreateCmd(app))
	return root
}

func newListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := templates.Names()
			if err != nil {
				return err
			}
			st := app.styles()
			for _, name := range names {
				tmpl, err := templates.Load(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(app.Out, "%s %s\n", st.name.Width(12).Render(name), tmpl.Description)
			}
			return nil
		},
	}
}

func newCreateCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create [template]",
		Short: "Create a site from a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(app, args[0])
		},
	}

	cmd.Flags().StringVarP(&flagName, "name", "n", "", "name of the new site")
	cmd.Flags().StringVar(&flagDatabase, "db", "./database.db", "path to the sqlite database")
	cmd.Flags().StringVar(&flagCompression, "compression", "zstd", "record compression (zstd, gzip)")
	cmd.MarkFlagRequired("name")

	return cmd
}

func runCreate(app *App, templateName string) error {
	tmpl, err := templates.Load(templateName)
	if err != nil {
		return err
	}

	compressor, err := compression.ByName(flagCompression)
	if err != nil {
		return err
	}

	// Initialize the SQLite database and ensure tables exist
	sqlite := db.NewSQLite(flagDatabase)
	if err := sqlite.InitDb(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer sqlite.Close()

	site, err := tmpl.Seed(repository.NewDBElementRepository(sqlite, compressor), flagName)
	if err != nil {
		return fmt.Errorf("failed to seed site: %w", err)
	}

	st := app.styles()
	fmt.Fprintf(app.Out, "%s %s (%s) from template %s with %d elements\n",
		st.success.Render("Created site"),
		st.name.Render(strconv.Quote(site.Name)),
		st.id.Render(string(site.Id)),
		tmpl.Id,
		len(tmpl.Elements))
	return nil
}
