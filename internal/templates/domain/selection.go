package templates

// Selection tracks the template currently chosen for a kind.
type Selection struct {
	kind     Kind
	selected string
}

// NewSelection selects the default template, else the first one, else none.
func NewSelection(kind Kind, list []Template) *Selection {
	s := &Selection{kind: kind}
	s.selected = fallback(list)
	return s
}

// Kind returns the template kind.
func (s *Selection) Kind() Kind { return s.kind }

// Selected returns the selected id, empty when none.
func (s *Selection) Selected() string { return s.selected }

// Select chooses a template if it exists in list.
func (s *Selection) Select(id string, list []Template) bool {
	for _, t := range list {
		if t.ID == id {
			s.selected = id
			return true
		}
	}
	return false
}

// Removed updates the selection after id was deleted; remaining is the list
// without it.
func (s *Selection) Removed(id string, remaining []Template) {
	if s.selected != id {
		return
	}
	s.selected = fallback(remaining)
}

// Reconcile drops a selection that no longer exists.
func (s *Selection) Reconcile(list []Template) {
	for _, t := range list {
		if t.ID == s.selected {
			return
		}
	}
	s.selected = fallback(list)
}

func fallback(list []Template) string {
	for _, t := range list {
		if t.IsDefault {
			return t.ID
		}
	}
	if len(list) > 0 {
		return list[0].ID
	}
	return ""
}
