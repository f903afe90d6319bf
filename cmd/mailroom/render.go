package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/eduexamportal/mailroom/internal/render"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	renderSubject  string
	renderBody     string
	renderBodyFile string
	renderVars     []string
	renderVarsFile string
	renderBrand    string
	renderHTMLOnly bool
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a template locally",
	Long: `Substitutes placeholders into a subject and body and prints the finished email.
Nothing is stored or sent.

Variables use the same names as the API: firstName, lastName, examTitle,
institutionName, expirationDate, inviteUrl, invitedBy, departmentName.

Examples:
  mailroom render --subject "Hi {firstName}" --body "<p>{examTitle}</p>" --var firstName=jane --var examTitle="final exam"
  mailroom render --subject "Welcome" --body-file body.html --vars-file vars.yaml --html`,
	Args: cobra.NoArgs,
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringVar(&renderSubject, "subject", "", "Subject line")
	renderCmd.Flags().StringVar(&renderBody, "body", "", "Body HTML")
	renderCmd.Flags().StringVar(&renderBodyFile, "body-file", "", "Read the body from a file")
	renderCmd.Flags().StringArrayVar(&renderVars, "var", nil, "Variable as name=value (repeatable)")
	renderCmd.Flags().StringVar(&renderVarsFile, "vars-file", "", "YAML or JSON file of variables")
	renderCmd.Flags().StringVar(&renderBrand, "brand", render.DefaultBrand, "Brand shown in the header and footer")
	renderCmd.Flags().BoolVar(&renderHTMLOnly, "html", false, "Print only the HTML document")
	renderCmd.MarkFlagsMutuallyExclusive("body", "body-file")
}

func runRender(cmd *cobra.Command, args []string) error {
	body := renderBody
	if renderBodyFile != "" {
		data, err := os.ReadFile(renderBodyFile)
		if err != nil {
			return fmt.Errorf("reading body: %w", err)
		}
		body = string(data)
	}
	if renderSubject == "" && body == "" {
		return fmt.Errorf("nothing to render: pass --subject and --body or --body-file")
	}

	values := map[string]string{}
	if renderVarsFile != "" {
		data, err := os.ReadFile(renderVarsFile)
		if err != nil {
			return fmt.Errorf("reading variables: %w", err)
		}
		if err := yaml.Unmarshal(data, &values); err != nil {
			return fmt.Errorf("parsing %s: %w", renderVarsFile, err)
		}
	}
	for _, kv := range renderVars {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return fmt.Errorf("invalid --var %q: expected name=value", kv)
		}
		values[name] = value
	}

	vars, err := parseVariables(values)
	if err != nil {
		return err
	}

	email, err := render.New(renderBrand).Render(render.Template{Subject: renderSubject, MainMessage: body}, vars)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if renderHTMLOnly {
		fmt.Fprintln(out, email.HTML)
		return nil
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(email)
}

// parseVariables maps API variable names onto render.Variables, rejecting
// names the renderer does not know.
func parseVariables(values map[string]string) (render.Variables, error) {
	var vars render.Variables
	raw, err := json.Marshal(values)
	if err != nil {
		return vars, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&vars); err != nil {
		return vars, fmt.Errorf("invalid variables: %w", err)
	}
	return vars, nil
}
