package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/objectstore/internal/cli/ui"
	"github.com/conduit-lang/objectstore/internal/orm/codegen"
	"github.com/conduit-lang/objectstore/internal/orm/dialect"
)

var (
	ddlDialectFlag string
	ddlApplyFlag   bool
)

// NewDDLCommand creates the ddl command
func NewDDLCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ddl",
		Short: "Print or apply the schema of a class model",
		Long: `Generate CREATE TABLE statements for every class and join table of the model.

The statements bootstrap a store; they are not migrations. Applying them twice
is safe.`,
		Example: `  # Print PostgreSQL DDL
  objectstore ddl --model model.yml --dialect postgres

  # Create the tables in the configured database
  objectstore ddl --model model.yml --apply`,
		RunE: withEnvironment(runDDL),
	}

	cmd.Flags().StringVar(&ddlDialectFlag, "dialect", "", "sqlite or postgres (default: the configured driver's dialect)")
	cmd.Flags().BoolVar(&ddlApplyFlag, "apply", false, "execute the statements against the configured database")

	return cmd
}

func runDDL(cmd *cobra.Command, env *environment) error {
	d := env.dialect
	if ddlDialectFlag != "" {
		chosen, err := dialect.ForDriver(ddlDialectFlag)
		if err != nil {
			return err
		}
		d = chosen
	}
	gen := codegen.NewDDLGenerator(d)

	if !ddlApplyFlag {
		statements, err := gen.GenerateSchema(env.registry)
		if err != nil {
			return err
		}
		for _, stmt := range statements {
			fmt.Fprintln(cmd.OutOrStdout(), stmt)
		}
		return nil
	}

	if d.Name() != env.dialect.Name() {
		return fmt.Errorf("cannot apply %s DDL to a %s database", d.Name(), env.dialect.Name())
	}

	ctx := cmd.Context()
	db, err := env.openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := gen.Apply(ctx, db, env.registry, env.logger); err != nil {
		return err
	}
	ui.WriteSuccess(cmd.OutOrStdout(), fmt.Sprintf("schema applied for %d classes", len(env.registry.List())), noColorFlag)
	return nil
}
