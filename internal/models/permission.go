package models

import (
	"fmt"
	"sort"
)

// Permission is a fine-grained capability granted to non-admin users.
type Permission string

const (
	PermManageUsers          Permission = "manage_users"
	PermCreateProjects       Permission = "create_projects"
	PermDeleteModels         Permission = "delete_models"
	PermUploadModels         Permission = "upload_models"
	PermEditModels           Permission = "edit_models"
	PermEditModelDescription Permission = "edit_model_description"
	PermEditModelSphere      Permission = "edit_model_sphere"
	PermEditModelScreenshots Permission = "edit_model_screenshots"
	PermDownloadModels       Permission = "download_models"
	PermEditProjects         Permission = "edit_projects"
	PermAddSphere            Permission = "add_sphere"
)

// AllPermissions is the complete vocabulary, in display order.
var AllPermissions = []Permission{
	PermManageUsers,
	PermCreateProjects,
	PermDeleteModels,
	PermUploadModels,
	PermEditModels,
	PermEditModelDescription,
	PermEditModelSphere,
	PermEditModelScreenshots,
	PermDownloadModels,
	PermEditProjects,
	PermAddSphere,
}

func (p Permission) Valid() bool {
	for _, known := range AllPermissions {
		if p == known {
			return true
		}
	}
	return false
}

// ParsePermissions validates raw tags and returns a sorted set without duplicates.
func ParsePermissions(raw []string) ([]Permission, error) {
	seen := make(map[Permission]struct{}, len(raw))
	out := make([]Permission, 0, len(raw))
	for _, s := range raw {
		p := Permission(s)
		if !p.Valid() {
			return nil, fmt.Errorf("unknown permission %q", s)
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
