package mediapackage

import (
	"encoding/xml"
	"strings"

	"github.com/ansel1/merry/v2"
	"github.com/rs/zerolog/log"
)

// ACLNamespace is the XML namespace of Opencast access control lists.
const ACLNamespace = "http://org.opencastproject.security"

// ACL is a series access control list: a flat list of access control
// entries.
type ACL struct {
	XMLName xml.Name `xml:"http://org.opencastproject.security acl"`
	Entries []ACE    `xml:"ace"`
}

type ACE struct {
	Action string `xml:"action"`
	Allow  string `xml:"allow"`
	Role   string `xml:"role"`
}

// Action is one permitted operation of a role, with its allow value kept
// as the literal string the backend uses.
type Action struct {
	Name  string
	Allow string
}

// RoleActions groups the actions of a single role, in document order.
type RoleActions struct {
	Role    string
	Actions []Action
}

// RoleTransform rewrites a role and its actions before they are added to
// a rebuilt ACL. Returning an empty role drops the role entirely.
type RoleTransform func(role string, actions []Action) (string, []Action)

func ParseACL(data []byte) (ACL, error) {
	var acl ACL
	if err := xml.Unmarshal(data, &acl); err != nil {
		return ACL{}, merry.Wrap(err)
	}
	return acl, nil
}

func (acl ACL) XML() ([]byte, error) {
	body, err := xml.MarshalIndent(acl, "", "  ")
	if err != nil {
		return nil, merry.Wrap(err)
	}
	return append([]byte(xml.Header), append(body, '\n')...), nil
}

// Roles groups the entries by role, keeping first-seen order for both
// roles and actions. A later entry for the same role and action replaces
// the earlier allow value.
func (acl ACL) Roles() []RoleActions {
	var roles []RoleActions
	index := map[string]int{}

	for _, ace := range acl.Entries {
		i, ok := index[ace.Role]
		if !ok {
			index[ace.Role] = len(roles)
			roles = append(roles, RoleActions{Role: ace.Role})
			i = len(roles) - 1
		}
		replaced := false
		for j, action := range roles[i].Actions {
			if action.Name == ace.Action {
				roles[i].Actions[j].Allow = ace.Allow
				replaced = true
				break
			}
		}
		if !replaced {
			roles[i].Actions = append(roles[i].Actions, Action{Name: ace.Action, Allow: ace.Allow})
		}
	}
	return roles
}

// Rebuild produces a new ACL from the receiver, applying the optional
// role transform and appending the given default roles when they are not
// already present. The backend does not support deny rules, so non-allow
// actions are skipped with a warning instead of being emitted.
func (acl ACL) Rebuild(defaults []RoleActions, transform RoleTransform) ACL {
	existing := map[string]bool{}
	out := ACL{}

	for _, ra := range acl.Roles() {
		existing[ra.Role] = true

		role, actions := ra.Role, ra.Actions
		if transform != nil {
			role, actions = transform(role, actions)
		}
		out.addRole(role, actions)
	}

	// Default roles are never passed through the transform.
	for _, ra := range defaults {
		if !existing[ra.Role] {
			out.addRole(ra.Role, ra.Actions)
		}
	}
	return out
}

func (acl *ACL) addRole(role string, actions []Action) {
	if role == "" {
		return
	}
	for _, action := range actions {
		if !strings.EqualFold(action.Allow, "true") {
			log.Warn().Str("role", role).Str("action", action.Name).Str("allow", action.Allow).
				Msg("ignoring non-allow access control rule")
			continue
		}
		acl.Entries = append(acl.Entries, ACE{
			Action: action.Name,
			Allow:  action.Allow,
			Role:   role,
		})
	}
}
