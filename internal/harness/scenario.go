package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario defines a multi-peer conformance scenario.
// Every named peer gets its own lifecycle engine and sync loop; all peers
// share one durable store, one shared key-value bus and one fake clock.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Peers lists the peer names in the order they start and are pumped.
	Peers []string `yaml:"peers"`

	// Menu is the catalog that place steps pick items from.
	Menu []MenuEntry `yaml:"menu"`

	// Customers are the diners that place steps order for.
	Customers []CustomerEntry `yaml:"customers,omitempty"`

	// Steps run in order. Steps never sync implicitly; use a sync step.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state of every peer.
	Assertions []Assertion `yaml:"assertions"`
}

// MenuEntry is a catalog item. Price is a decimal string.
type MenuEntry struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Price string `yaml:"price"`
}

// CustomerEntry is a registered diner.
type CustomerEntry struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Table int    `yaml:"table"`
}

// LineEntry is one cart line of a place step.
type LineEntry struct {
	Item string `yaml:"item"`
	Qty  int    `yaml:"qty"`
}

// Step is a single scenario action.
//
// Ids generated by a peer are "<peer>-<n>", counting orders and their items
// together, so the first order placed on peer "front" with two lines is
// "front-1" with items "front-2" and "front-3".
type Step struct {
	// Action is one of the Action* constants.
	Action string `yaml:"action"`

	// Peer runs the action. Not used by advance and sync.
	Peer string `yaml:"peer,omitempty"`

	// Role is the acting role for transition, cancel and item.
	Role string `yaml:"role,omitempty"`

	// Customer is the diner for place, and the acting customer id when
	// Role is customer.
	Customer string `yaml:"customer,omitempty"`

	Order    string        `yaml:"order,omitempty"`
	Status   string        `yaml:"status,omitempty"`
	Item     string        `yaml:"item,omitempty"`
	Op       string        `yaml:"op,omitempty"`
	Lines    []LineEntry   `yaml:"lines,omitempty"`
	Duration time.Duration `yaml:"duration,omitempty"`

	// Expect is the expected error code. Empty means success.
	Expect string `yaml:"expect,omitempty"`
}

// Step actions.
const (
	ActionPlace      = "place"
	ActionTransition = "transition"
	ActionCancel     = "cancel"
	ActionItem       = "item"
	ActionAdvance    = "advance"
	ActionSync       = "sync"
	ActionPublish    = "publish"
	ActionRecover    = "recover"
)

// Assertion validates the final state of one peer, or of all peers.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	Peer   string `yaml:"peer,omitempty"`
	Order  string `yaml:"order,omitempty"`
	Status string `yaml:"status,omitempty"`
	Total  string `yaml:"total,omitempty"`
	Code   string `yaml:"code,omitempty"`

	// Count is used by order_count and receipts.
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertOrderStatus = "order_status"
	AssertOrderTotal  = "order_total"
	AssertOrderAbsent = "order_absent"
	AssertOrderCount  = "order_count"
	AssertConverged   = "converged"
	AssertReceipts    = "receipts"
	AssertNotified    = "notified"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and that every
// step and assertion names known peers, items and customers.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Peers) == 0 {
		return fmt.Errorf("peers list is required and must be non-empty")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	peers := make(map[string]bool, len(s.Peers))
	for i, p := range s.Peers {
		if p == "" {
			return fmt.Errorf("peers[%d]: name is required", i)
		}
		if peers[p] {
			return fmt.Errorf("peers[%d]: duplicate peer %q", i, p)
		}
		peers[p] = true
	}

	menu := make(map[string]bool, len(s.Menu))
	for i, m := range s.Menu {
		if m.ID == "" {
			return fmt.Errorf("menu[%d]: id is required", i)
		}
		if m.Price == "" {
			return fmt.Errorf("menu[%d]: price is required", i)
		}
		menu[m.ID] = true
	}

	customers := make(map[string]bool, len(s.Customers))
	for i, c := range s.Customers {
		if c.ID == "" {
			return fmt.Errorf("customers[%d]: id is required", i)
		}
		customers[c.ID] = true
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step, peers, menu, customers); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a, peers); err != nil {
			return err
		}
	}

	return nil
}

// validateStep checks the fields each action needs.
func validateStep(index int, s *Step, peers, menu, customers map[string]bool) error {
	switch s.Action {
	case ActionAdvance:
		if s.Duration <= 0 {
			return fmt.Errorf("steps[%d]: duration must be positive for advance", index)
		}
		return nil
	case ActionSync:
		return nil
	case "":
		return fmt.Errorf("steps[%d]: action is required", index)
	}

	if !peers[s.Peer] {
		return fmt.Errorf("steps[%d]: unknown peer %q", index, s.Peer)
	}

	switch s.Action {
	case ActionPlace:
		if !customers[s.Customer] {
			return fmt.Errorf("steps[%d]: unknown customer %q", index, s.Customer)
		}
		for j, l := range s.Lines {
			if !menu[l.Item] {
				return fmt.Errorf("steps[%d].lines[%d]: unknown menu item %q", index, j, l.Item)
			}
		}
	case ActionTransition:
		if s.Order == "" || s.Status == "" || s.Role == "" {
			return fmt.Errorf("steps[%d]: order, status and role are required for transition", index)
		}
	case ActionCancel:
		if s.Order == "" || s.Role == "" {
			return fmt.Errorf("steps[%d]: order and role are required for cancel", index)
		}
	case ActionItem:
		if s.Order == "" || s.Item == "" || s.Op == "" || s.Role == "" {
			return fmt.Errorf("steps[%d]: order, item, op and role are required for item", index)
		}
	case ActionPublish, ActionRecover:
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", index, s.Action)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, peers map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Type == AssertConverged {
		return nil
	}
	if !peers[a.Peer] {
		return fmt.Errorf("assertions[%d]: unknown peer %q", index, a.Peer)
	}

	switch a.Type {
	case AssertOrderStatus:
		if a.Order == "" || a.Status == "" {
			return fmt.Errorf("assertions[%d]: order and status are required for order_status", index)
		}
	case AssertOrderTotal:
		if a.Order == "" || a.Total == "" {
			return fmt.Errorf("assertions[%d]: order and total are required for order_total", index)
		}
	case AssertOrderAbsent:
		if a.Order == "" {
			return fmt.Errorf("assertions[%d]: order is required for order_absent", index)
		}
	case AssertOrderCount, AssertReceipts:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertNotified:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for notified", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
