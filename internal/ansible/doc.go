// Package ansible drives the configuration backend: it writes the hcloud
// dynamic inventory files for a deployment, runs playbooks against role
// groups and renders their extra vars.
package ansible
