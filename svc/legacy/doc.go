// Package legacy performs the one-time import of user documents from the
// previous document store (exported to MongoDB) into ledgers. Both historic
// layouts, the flat credits counter and the nested subscription object, are
// normalized here and nowhere else.
package legacy
