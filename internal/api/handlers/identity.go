package handlers

import (
	"fmt"
	"net/http"
	"strconv"
)

// memberHeader carries the caller's member id. There is no account system;
// any positive integer names a member.
const memberHeader = "X-Member-ID"

func memberID(r *http.Request) (int, error) {
	raw := r.Header.Get(memberHeader)
	if raw == "" {
		return 0, fmt.Errorf("missing %s header", memberHeader)
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s header", memberHeader)
	}
	return id, nil
}
