// Package links persists the link index: which components (and component
// instances) depend on which files of a site.
//
// Adding a link that already exists is a no-op. A query with an empty
// componentID matches every instance of the component.
package links
