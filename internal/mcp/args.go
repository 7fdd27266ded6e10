package mcp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/a3tai/mcp-pdf-signer/internal/geometry"
)

// stringList reads an array argument. Clients that cannot send arrays may
// pass a comma separated string instead.
func stringList(request mcp.CallToolRequest, key string) ([]string, error) {
	raw, ok := request.GetArguments()[key]
	if !ok {
		return nil, fmt.Errorf("required argument %q not found", key)
	}
	var out []string
	switch v := raw.(type) {
	case string:
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	default:
		list, err := request.RequireStringSlice(key)
		if err != nil {
			return nil, err
		}
		for _, item := range list {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("argument %q is empty", key)
	}
	return out, nil
}

// pointList reads a flat list of x,y pairs
func pointList(request mcp.CallToolRequest, key string) ([]geometry.Point, error) {
	raw, ok := request.GetArguments()[key]
	if !ok {
		return nil, fmt.Errorf("required argument %q not found", key)
	}

	var nums []float64
	if str, isString := raw.(string); isString {
		for _, field := range strings.FieldsFunc(str, func(r rune) bool { return r == ',' || r == ' ' || r == ';' }) {
			f, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("argument %q: %w", key, err)
			}
			nums = append(nums, f)
		}
	} else {
		var err error
		if nums, err = request.RequireFloatSlice(key); err != nil {
			return nil, err
		}
	}

	if len(nums)%2 != 0 {
		return nil, fmt.Errorf("argument %q must hold x,y pairs, got %d numbers", key, len(nums))
	}
	points := make([]geometry.Point, 0, len(nums)/2)
	for i := 0; i < len(nums); i += 2 {
		points = append(points, geometry.Point{X: nums[i], Y: nums[i+1]})
	}
	return points, nil
}

func requirePage(request mcp.CallToolRequest) (int, error) {
	page, err := request.RequireInt("page")
	if err != nil {
		return 0, err
	}
	if page < 0 {
		return 0, fmt.Errorf("page must not be negative")
	}
	return page, nil
}

func requirePoint(request mcp.CallToolRequest, xKey, yKey string) (geometry.Point, error) {
	x, err := request.RequireFloat(xKey)
	if err != nil {
		return geometry.Point{}, err
	}
	y, err := request.RequireFloat(yKey)
	if err != nil {
		return geometry.Point{}, err
	}
	return geometry.Point{X: x, Y: y}, nil
}
