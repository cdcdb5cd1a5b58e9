package device

// Filter selects descriptors. Filters are used to resolve a caller's device
// selector against the enumeration.
type Filter func(Descriptor) bool

// FilterAll accepts every descriptor.
func FilterAll() Filter {
	return func(Descriptor) bool { return true }
}

// FilterByIndex accepts the modes of the device at index.
func FilterByIndex(index int) Filter {
	return func(d Descriptor) bool {
		return d.Index == index
	}
}

// FilterByName accepts the modes of devices whose name or native path equals name.
func FilterByName(name string) Filter {
	return func(d Descriptor) bool {
		return d.Name == name || (d.Path != "" && d.Path == name)
	}
}

// FilterByAPI accepts descriptors produced by api.
func FilterByAPI(api API) Filter {
	return func(d Descriptor) bool {
		return d.API == api
	}
}

// FilterNot returns a filter negating the given filter.
func FilterNot(filter Filter) Filter {
	return func(d Descriptor) bool {
		return !filter(d)
	}
}

// FilterAnd returns a filter that accepts only if every filter accepts.
func FilterAnd(filters ...Filter) Filter {
	return func(d Descriptor) bool {
		for _, filter := range filters {
			if !filter(d) {
				return false
			}
		}
		return true
	}
}

// Apply returns the descriptors accepted by f, keeping their order. A nil f accepts all.
func (f Filter) Apply(descs []Descriptor) []Descriptor {
	if f == nil {
		return descs
	}
	var out []Descriptor
	for _, d := range descs {
		if f(d) {
			out = append(out, d)
		}
	}
	return out
}
