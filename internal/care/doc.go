// Package care holds the plant-care domain types shared by every layer:
// tasks, the closed task-type set, the plant projection, the Plant Directory
// and Task Store contracts, and the domain errors.
package care
