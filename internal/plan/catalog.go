package plan

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// ToolDefinition describes one tool a worker role supports.
type ToolDefinition struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	PayloadSchema struct {
		Required []string `json:"required"`
	} `json:"payload_schema"`
}

// RoleDefinition describes a worker role and the tools it supports.
type RoleDefinition struct {
	Role  string           `json:"role"`
	Tools []ToolDefinition `json:"tools"`
}

// Catalog is the validator's view of the outside world: which worker roles
// exist, which tools each supports, and what the local actions require.
type Catalog struct {
	Roles []RoleDefinition `json:"roles"`

	rolesMap map[string]map[string]ToolDefinition
}

// LoadCatalog reads role/tool definitions from a JSON file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read catalog file: %w", err)
	}
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("could not parse catalog JSON: %w", err)
	}
	c.index()
	return &c, nil
}

// NewCatalog builds a catalog from in-code role definitions.
func NewCatalog(roles []RoleDefinition) *Catalog {
	c := &Catalog{Roles: roles}
	c.index()
	return c
}

func (c *Catalog) index() {
	c.rolesMap = make(map[string]map[string]ToolDefinition, len(c.Roles))
	for _, r := range c.Roles {
		tools := make(map[string]ToolDefinition, len(r.Tools))
		for _, t := range r.Tools {
			tools[t.Name] = t
		}
		c.rolesMap[r.Role] = tools
	}
}

// HasRole reports whether the catalog knows the worker role.
func (c *Catalog) HasRole(role string) bool {
	_, ok := c.rolesMap[role]
	return ok
}

// Tool returns the definition of a tool under a role.
func (c *Catalog) Tool(role, name string) (ToolDefinition, bool) {
	tools, ok := c.rolesMap[role]
	if !ok {
		return ToolDefinition{}, false
	}
	def, ok := tools[name]
	return def, ok
}

// PromptPart renders the catalog as a text block for planner prompts.
func (c *Catalog) PromptPart() string {
	var sb strings.Builder
	sb.WriteString("AVAILABLE WORKER ROLES & TOOLS:\n")
	roles := make([]string, 0, len(c.Roles))
	for _, r := range c.Roles {
		roles = append(roles, r.Role)
	}
	sort.Strings(roles)
	for _, role := range roles {
		tools, ok := c.rolesMap[role]
		if !ok {
			continue
		}
		names := make([]string, 0, len(tools))
		for n := range tools {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			def := tools[n]
			required := strings.Join(def.PayloadSchema.Required, ", ")
			sb.WriteString(fmt.Sprintf("- role `%s`, tool `%s`: %s Input requires keys: `[%s]`.\n",
				role, n, def.Description, required))
		}
	}
	return sb.String()
}

// fileOperations is the allow-list for the file_operation local action,
// mapping each operation to the params keys it requires.
var fileOperations = map[string][]string{
	"create_file":      {"path"},
	"write_file":       {"path", "content"},
	"append_file":      {"path", "content"},
	"read_file":        {"path"},
	"delete_file":      {"path"},
	"create_directory": {"path"},
	"list_directory":   {"path"},
}

// FileOperationParams returns the required params keys for a file_operation
// operation, or false when the operation is not allow-listed.
func FileOperationParams(op string) ([]string, bool) {
	keys, ok := fileOperations[op]
	return keys, ok
}

// FileOperations returns the allow-listed file operation names, sorted.
func FileOperations() []string {
	out := make([]string, 0, len(fileOperations))
	for op := range fileOperations {
		out = append(out, op)
	}
	sort.Strings(out)
	return out
}

// DestructiveFileOperations lists operations that warrant user confirmation
// before a plan containing them is executed.
var DestructiveFileOperations = map[string]struct{}{
	"delete_file": {},
}
