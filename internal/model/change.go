package model

import (
	"encoding/json"
	"fmt"
)

// Kind names the entity kinds that can be queued while offline.
type Kind string

const (
	KindInventory Kind = "inventory"
	KindShopping  Kind = "shopping"
	KindSettings  Kind = "settings"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

func (a Action) Valid() bool {
	return a == ActionCreate || a == ActionUpdate || a == ActionDelete
}

// Change is a mutation recorded while offline. The set of implementations is
// closed: InventoryChange, ShoppingChange and SettingsChange.
type Change interface {
	Kind() Kind
	Action() Action
	TargetID() string
	Validate() error
	isChange()
}

// InventoryChange carries a full record for creates and a patch for updates.
type InventoryChange struct {
	Op    Action          `json:"op"`
	ID    string          `json:"id"`
	Item  *InventoryItem  `json:"item,omitempty"`
	Patch *InventoryPatch `json:"patch,omitempty"`
}

func (InventoryChange) Kind() Kind         { return KindInventory }
func (c InventoryChange) Action() Action   { return c.Op }
func (c InventoryChange) TargetID() string { return c.ID }
func (InventoryChange) isChange()          {}

func (c InventoryChange) Validate() error {
	if err := validateOp(c.Op, c.ID); err != nil {
		return err
	}
	switch c.Op {
	case ActionCreate:
		if c.Item == nil || c.Item.ID != c.ID {
			return fmt.Errorf("inventory create %q: item payload missing or mismatched", c.ID)
		}
	case ActionUpdate:
		if c.Patch == nil {
			return fmt.Errorf("inventory update %q: patch payload missing", c.ID)
		}
	}
	return nil
}

type ShoppingChange struct {
	Op    Action            `json:"op"`
	ID    string            `json:"id"`
	Item  *ShoppingListItem `json:"item,omitempty"`
	Patch *ShoppingPatch    `json:"patch,omitempty"`
}

func (ShoppingChange) Kind() Kind         { return KindShopping }
func (c ShoppingChange) Action() Action   { return c.Op }
func (c ShoppingChange) TargetID() string { return c.ID }
func (ShoppingChange) isChange()          {}

func (c ShoppingChange) Validate() error {
	if err := validateOp(c.Op, c.ID); err != nil {
		return err
	}
	switch c.Op {
	case ActionCreate:
		if c.Item == nil || c.Item.ID != c.ID {
			return fmt.Errorf("shopping create %q: item payload missing or mismatched", c.ID)
		}
	case ActionUpdate:
		if c.Patch == nil {
			return fmt.Errorf("shopping update %q: patch payload missing", c.ID)
		}
	}
	return nil
}

// SettingsChange is always an update of the singleton record.
type SettingsChange struct {
	Patch SettingsPatch `json:"patch"`
}

func (SettingsChange) Kind() Kind       { return KindSettings }
func (SettingsChange) Action() Action   { return ActionUpdate }
func (SettingsChange) TargetID() string { return "" }
func (SettingsChange) Validate() error  { return nil }
func (SettingsChange) isChange()        {}

func validateOp(op Action, id string) error {
	if !op.Valid() {
		return fmt.Errorf("unknown action %q", op)
	}
	if id == "" {
		return fmt.Errorf("%s change without target id", op)
	}
	return nil
}

// PendingChange is a queued Change with its queue-assigned ordering stamp.
type PendingChange struct {
	Seq      int64  `json:"seq"`
	QueuedAt int64  `json:"queuedAt"`
	Change   Change `json:"-"`
}

// EncodeChange serializes the payload of c.
func EncodeChange(c Change) ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal %s change: %w", c.Kind(), err)
	}
	return data, nil
}

// DecodeChange rebuilds a Change from its kind and serialized payload.
func DecodeChange(kind Kind, payload []byte) (Change, error) {
	var (
		c   Change
		err error
	)
	switch kind {
	case KindInventory:
		var ic InventoryChange
		err = json.Unmarshal(payload, &ic)
		c = ic
	case KindShopping:
		var sc ShoppingChange
		err = json.Unmarshal(payload, &sc)
		c = sc
	case KindSettings:
		var st SettingsChange
		err = json.Unmarshal(payload, &st)
		c = st
	default:
		return nil, fmt.Errorf("unknown change kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s change: %w", kind, err)
	}
	return c, nil
}
