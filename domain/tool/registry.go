package tool

// Registry defines the interface for tool registration and lookup.
// Implementations live in infrastructure/storage.
type Registry interface {
	// Register adds a tool; a duplicate name returns ErrToolExists.
	Register(tool Tool) error

	// Get retrieves a tool by name.
	Get(name string) (Tool, bool)

	// List returns all registered tools sorted by name.
	List() []Tool

	// Names returns all registered tool names sorted.
	Names() []string

	// Has checks if a tool is registered.
	Has(name string) bool

	// Unregister removes a tool from the registry.
	Unregister(name string) error
}
