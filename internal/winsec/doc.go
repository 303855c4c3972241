// Package winsec holds the small pieces of Windows-specific security and
// process-tree plumbing the daemon needs: the SDDL string that restricts
// a named pipe instance to the current user's SID, and job objects used
// to kill a spawned shell's entire descendant tree.
package winsec
