//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package artifact

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// UserNamespacePrefix marks filenames shared by every session of a user.
const UserNamespacePrefix = "user:"

// ErrInvalidFilename is returned when a filename cannot be mapped onto an
// object name.
var ErrInvalidFilename = errors.New("artifact: invalid filename")

// ValidateFilename reports whether filename can be stored by an object
// store backend.
func ValidateFilename(filename string) error {
	if filename == "" || strings.Contains(filename, "/") || strings.Contains(filename, "\\") {
		return fmt.Errorf("%w: %q", ErrInvalidFilename, filename)
	}
	return nil
}

// ObjectName returns the object name of one artifact version:
//   - {app}/{user}/user/{filename}/{version} for user namespaced files
//   - {app}/{user}/{session}/{filename}/{version} otherwise
func ObjectName(info SessionInfo, filename string, version int) string {
	return ObjectNamePrefix(info, filename) + strconv.Itoa(version)
}

// ObjectNamePrefix returns the prefix shared by every version of filename.
func ObjectNamePrefix(info SessionInfo, filename string) string {
	if strings.HasPrefix(filename, UserNamespacePrefix) {
		return UserNamespacePrefixOf(info) + filename + "/"
	}
	return SessionPrefix(info) + filename + "/"
}

// SessionPrefix returns the prefix of session scoped objects.
func SessionPrefix(info SessionInfo) string {
	return fmt.Sprintf("%s/%s/%s/", info.AppName, info.UserID, info.SessionID)
}

// UserNamespacePrefixOf returns the prefix of user namespaced objects.
func UserNamespacePrefixOf(info SessionInfo) string {
	return fmt.Sprintf("%s/%s/user/", info.AppName, info.UserID)
}

// ParseObjectName splits an object name below prefix into filename and
// version. ok is false for names that do not follow the layout.
func ParseObjectName(prefix, objectName string) (filename string, version int, ok bool) {
	rest, found := strings.CutPrefix(objectName, prefix)
	if !found {
		return "", 0, false
	}
	filename, versionStr, found := strings.Cut(rest, "/")
	if !found || filename == "" || strings.Contains(versionStr, "/") {
		return "", 0, false
	}
	version, err := strconv.Atoi(versionStr)
	if err != nil || version < 0 {
		return "", 0, false
	}
	return filename, version, true
}

// NextVersion returns the version following the highest of versions.
func NextVersion(versions []int) int {
	next := 0
	for _, v := range versions {
		if v+1 > next {
			next = v + 1
		}
	}
	return next
}

// LatestVersion returns the highest of versions, or false when empty.
func LatestVersion(versions []int) (int, bool) {
	if len(versions) == 0 {
		return 0, false
	}
	latest := versions[0]
	for _, v := range versions[1:] {
		if v > latest {
			latest = v
		}
	}
	return latest, true
}
