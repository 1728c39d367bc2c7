// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package base

import (
	"encoding/json"
)

// ResponseKind tags which variant a ConnStoreResponse carries
type ResponseKind int

const (
	// ResponseBool answers check_connection
	ResponseBool ResponseKind = iota
	// ResponseString is the message of a mutation or bootstrap
	ResponseString
	// ResponseMap maps key to rendered URI
	ResponseMap
	// ResponseInfo carries a single descriptor
	ResponseInfo
	// ResponseList carries descriptors from list_conn
	ResponseList
	// ResponseKeys carries the sorted live keys
	ResponseKeys
)

// ConnStoreResponse is the success value of a registry operation. Exactly one
// variant is set; JSON encoding emits only that variant's value.
type ConnStoreResponse struct {
	Kind ResponseKind

	Bool bool
	Text string
	Map  map[string]string
	Info *ConnInfo
	List []ConnInfo
	Keys []string
}

// BoolResponse wraps a probe result
func BoolResponse(b bool) *ConnStoreResponse {
	return &ConnStoreResponse{Kind: ResponseBool, Bool: b}
}

// StringResponse wraps a status message
func StringResponse(s string) *ConnStoreResponse {
	return &ConnStoreResponse{Kind: ResponseString, Text: s}
}

// MapResponse wraps a key to URI map; nil becomes an empty map
func MapResponse(m map[string]string) *ConnStoreResponse {
	if m == nil {
		m = map[string]string{}
	}
	return &ConnStoreResponse{Kind: ResponseMap, Map: m}
}

// InfoResponse wraps a copy of info
func InfoResponse(info ConnInfo) *ConnStoreResponse {
	return &ConnStoreResponse{Kind: ResponseInfo, Info: &info}
}

// ListResponse wraps descriptors; nil becomes an empty list
func ListResponse(list []ConnInfo) *ConnStoreResponse {
	if list == nil {
		list = []ConnInfo{}
	}
	return &ConnStoreResponse{Kind: ResponseList, List: list}
}

// KeysResponse wraps keys; nil becomes an empty list
func KeysResponse(keys []string) *ConnStoreResponse {
	if keys == nil {
		keys = []string{}
	}
	return &ConnStoreResponse{Kind: ResponseKeys, Keys: keys}
}

// Value returns the carried variant
func (r *ConnStoreResponse) Value() interface{} {
	switch r.Kind {
	case ResponseBool:
		return r.Bool
	case ResponseString:
		return r.Text
	case ResponseMap:
		return r.Map
	case ResponseInfo:
		return r.Info
	case ResponseList:
		return r.List
	case ResponseKeys:
		return r.Keys
	default:
		return nil
	}
}

// MarshalJSON emits only the carried value
func (r *ConnStoreResponse) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Value())
}

// JSONString renders the response body
func (r *ConnStoreResponse) JSONString() string {
	b, err := json.Marshal(r)
	if err != nil {
		return "null"
	}
	return string(b)
}
