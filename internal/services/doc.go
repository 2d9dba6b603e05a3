// Package services holds cross-cutting plumbing shared by the orchestrators:
// the error taxonomy used to classify failures and context annotations that
// tie log lines back to a batch run.
package services
