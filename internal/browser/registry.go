package browser

import "fmt"

// DefaultPageID is the key of the page opened at launch.
const DefaultPageID = "default"

// PageInfo pairs a registered key with the page's current URL.
type PageInfo struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Registry maps page keys to pages and tracks the active key. It is not
// safe for concurrent use; SessionManager guards it.
type Registry struct {
	pages  map[string]Page
	order  []string
	active string
}

func NewRegistry() *Registry {
	return &Registry{pages: make(map[string]Page)}
}

// Resolve returns the page for key, or for the active key when key is empty.
func (r *Registry) Resolve(key string) (Page, error) {
	if key == "" {
		key = r.active
	}
	page, ok := r.pages[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPageNotFound, key)
	}
	return page, nil
}

// Has reports whether key is registered.
func (r *Registry) Has(key string) bool {
	_, ok := r.pages[key]
	return ok
}

// Add registers page under key and makes it active.
func (r *Registry) Add(key string, page Page) error {
	if r.Has(key) {
		return fmt.Errorf("%w: %s", ErrPageExists, key)
	}
	r.pages[key] = page
	r.order = append(r.order, key)
	r.active = key
	return nil
}

// Switch makes key the active page.
func (r *Registry) Switch(key string) error {
	if !r.Has(key) {
		return fmt.Errorf("%w: %s", ErrPageNotFound, key)
	}
	r.active = key
	return nil
}

// List returns every key, in registration order, with its page's URL.
func (r *Registry) List() []PageInfo {
	out := make([]PageInfo, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, PageInfo{ID: key, URL: r.pages[key].URL()})
	}
	return out
}

// Keys returns the registered keys in registration order.
func (r *Registry) Keys() []string {
	return append([]string(nil), r.order...)
}

func (r *Registry) Active() string { return r.active }

func (r *Registry) Len() int { return len(r.order) }

// pagesForClose hands back every page and empties the registry.
func (r *Registry) pagesForClose() []Page {
	out := make([]Page, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.pages[key])
	}
	r.pages = make(map[string]Page)
	r.order = nil
	r.active = ""
	return out
}
