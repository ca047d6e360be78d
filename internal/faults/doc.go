// Package faults defines the typed errors shared by the ingestion pipeline.
//
// Each error implements Classifier so callers can tell per-file problems
// (ScanError, HashError) from per-target ones (RemoteTargetError), per-entry
// staging failures, and the only fatal class, ConfigurationError. Reports
// accumulate the non-fatal errors instead of stopping the run.
package faults
