package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MonkeysCloud/MonkeysLegion-Query-sub001/pkg/database"
)

var (
	labelColor = color.New(color.FgCyan, color.Bold)
	okColor    = color.New(color.FgGreen)
	missColor  = color.New(color.FgYellow)
)

// -----------------------------------------------------------------------------
// resolve
// -----------------------------------------------------------------------------

func newResolveCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <table>",
		Short: "Print the physical table the resolver selects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(v, func(ctx context.Context, s *session) error {
				return runResolve(ctx, cmd.OutOrStdout(), s.conn, s.schema, args[0])
			})
		},
	}
}

// runResolve, mantıksal tablo adının hangi fiziksel tabloya çözüldüğünü ve
// kararın kaynağını (Table Map veya metadata probe) yazar.
func runResolve(ctx context.Context, w io.Writer, conn *database.Connection, schema, table string) error {
	resolver := conn.Resolver(conn.DB)
	physical := resolver.ResolveTable(ctx, table, schema)
	_, mapped := conn.Tables().Lookup(table)

	labelColor.Fprint(w, "table:    ")
	fmt.Fprintln(w, table)
	labelColor.Fprint(w, "resolved: ")
	switch {
	case mapped:
		okColor.Fprintf(w, "%s (table map)\n", physical)
	case resolver.TableExists(ctx, schema, physical):
		okColor.Fprintf(w, "%s (metadata)\n", physical)
	default:
		missColor.Fprintf(w, "%s (not found, left unchanged)\n", physical)
	}
	return nil
}

// -----------------------------------------------------------------------------
// column
// -----------------------------------------------------------------------------

func newColumnCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "column <table> <column>",
		Short: "Check whether a column exists and which _id variant is used",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(v, func(ctx context.Context, s *session) error {
				return runColumn(ctx, cmd.OutOrStdout(), s.conn, s.schema, args[0], args[1])
			})
		},
	}
}

// runColumn, tabloyu çözer ve kolonu (birebir veya _id varyantıyla) arar.
func runColumn(ctx context.Context, w io.Writer, conn *database.Connection, schema, table, column string) error {
	resolver := conn.Resolver(conn.DB)
	physical := resolver.ResolveTable(ctx, table, schema)
	aliases := database.AliasMap{physical: {Schema: schema, Table: physical}}

	labelColor.Fprint(w, "table:  ")
	fmt.Fprintln(w, physical)
	labelColor.Fprint(w, "column: ")

	resolved, ok := resolver.ResolveColumnForAlias(ctx, aliases, physical, column)
	switch {
	case !ok:
		missColor.Fprintf(w, "%s (not found)\n", column)
	case resolved == column:
		okColor.Fprintf(w, "%s (exists)\n", column)
	default:
		okColor.Fprintf(w, "%s → %s (_id variant)\n", column, resolved)
	}
	return nil
}

// -----------------------------------------------------------------------------
// preview
// -----------------------------------------------------------------------------

func newPreviewCommand(v *viper.Viper) *cobra.Command {
	var (
		wheres []string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "preview <table>",
		Short: "Render a SELECT with resolution applied, without executing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(v, func(_ context.Context, s *session) error {
				return runPreview(cmd.OutOrStdout(), s.conn, args[0], wheres, limit)
			})
		},
	}
	cmd.Flags().StringArrayVarP(&wheres, "where", "w", nil, "Equality condition col=value (repeatable)")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "LIMIT clause (0 = none)")
	return cmd
}

// parseWhere, "col=value" ifadesini ayırır.
func parseWhere(expr string) (column, value string, err error) {
	column, value, found := strings.Cut(expr, "=")
	column = strings.TrimSpace(column)
	if !found || column == "" {
		return "", "", fmt.Errorf("invalid --where %q, expected col=value", expr)
	}
	return column, value, nil
}

// runPreview, builder'ı kurar ve named SQL'i, parametreleri, driver'a
// gidecek pozisyonel SQL'i ve debug SQL'i yazar.
func runPreview(w io.Writer, conn *database.Connection, table string, wheres []string, limit int) error {
	qb := conn.Builder().From(table)
	for _, expr := range wheres {
		column, value, err := parseWhere(expr)
		if err != nil {
			return err
		}
		qb.Where(column, "=", value)
	}
	if limit > 0 {
		qb.Limit(limit)
	}

	sql, params, err := qb.ToSQL()
	if err != nil {
		return err
	}
	compiled, args, err := qb.Compiled()
	if err != nil {
		return err
	}
	debug, err := qb.ToDebugSQL()
	if err != nil {
		return err
	}

	labelColor.Fprintln(w, "sql:")
	fmt.Fprintf(w, "  %s\n", sql)

	labelColor.Fprintln(w, "params:")
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s = %v\n", name, params[name])
	}

	labelColor.Fprintf(w, "%s:\n", conn.Grammar.Driver())
	fmt.Fprintf(w, "  %s %v\n", compiled, args)

	labelColor.Fprintln(w, "debug:")
	okColor.Fprintf(w, "  %s\n", debug)
	return nil
}
