package lttvhook

import "reflect"

// funcsEqual compares two Func values for identity. Go forbids comparing
// func values directly (except to nil), so hook identity is defined as
// "same underlying code pointer" via reflect, matching the spec's notion of
// (fn, data) as the dedup key for a registration.
func funcsEqual(a, b Func) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}
