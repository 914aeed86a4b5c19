package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/boxd/internal/application"
	"github.com/fyrsmithlabs/boxd/internal/dom"
)

const configScript = `script[type="text/x-config"]`

func newModulesCmd() *cobra.Command {
	var documentPath string

	cmd := &cobra.Command{
		Use:   "modules",
		Short: "List the module elements of a document",
		Long: `List every [data-module] element in an HTML document with its id and
whether it carries an inline text/x-config block.

Examples:
  boxd modules --document page.html`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := dom.ParseFile(documentPath)
			if err != nil {
				return err
			}
			return listModules(cmd.OutOrStdout(), doc)
		},
	}

	cmd.Flags().StringVar(&documentPath, "document", "", "HTML document to inspect")
	_ = cmd.MarkFlagRequired("document")
	return cmd
}

func listModules(w io.Writer, doc *dom.Document) error {
	elements := doc.QueryAll("[" + application.ModuleAttr + "]")
	if len(elements) == 0 {
		_, err := fmt.Fprintln(w, "no module elements found")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tMODULE\tTAG\tCONFIG")
	for _, el := range elements {
		name, _ := el.Attr(application.ModuleAttr)
		id := el.ID()
		if id == "" {
			id = "-"
		}
		hasConfig := "no"
		if el.Query(configScript) != nil {
			hasConfig = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", id, name, el.Tag(), hasConfig)
	}
	return tw.Flush()
}
