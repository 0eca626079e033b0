package posts

// Repository is the external persistence collaborator: a whole-document
// replace-on-write store.
type Repository interface {
	Load() (*Document, error)
	Save(doc *Document) error
}
