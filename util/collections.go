package util

import (
	"fmt"
	"regexp"
)

// MatchesAny returns true if the given string matches any of the given regular expressions
func MatchesAny(regExps []string, s string) bool {
	for _, item := range regExps {
		if matched, _ := regexp.MatchString(item, s); matched {
			return true
		}
	}

	return false
}

// ListContainsElement returns true if the given list contains the given element
func ListContainsElement[S ~[]E, E comparable](list S, element E) bool {
	for _, item := range list {
		if item == element {
			return true
		}
	}

	return false
}

// RemoveElementFromList returns a copy of the given list with all instances of the given element removed
func RemoveElementFromList[S ~[]E, E comparable](list S, element E) S {
	var out S

	for _, item := range list {
		if item != element {
			out = append(out, item)
		}
	}

	return out
}

// RemoveDuplicatesFromList returns a copy of the given list with all duplicates removed (keeping the first encountered)
func RemoveDuplicatesFromList[S ~[]E, E comparable](list S) S {
	out := make(S, 0, len(list))
	present := make(map[E]bool)

	for _, value := range list {
		if present[value] {
			continue
		}

		present[value] = true
		out = append(out, value)
	}

	return out
}

// CloneStringList makes a copy of the given list of strings
func CloneStringList(listToClone []string) []string {
	var out []string
	return append(out, listToClone...)
}

// CloneStringMap makes a copy of the given map of strings
func CloneStringMap(mapToClone map[string]string) map[string]string {
	out := map[string]string{}
	for key, value := range mapToClone {
		out[key] = value
	}

	return out
}

// KeyValuePairStringListToMap converts a list of key=value pairs to a map
func KeyValuePairStringListToMap(asList []string) (map[string]string, error) {
	asMap := map[string]string{}

	for _, pair := range asList {
		splits := regexp.MustCompile(`\s*=\s*`).Split(pair, 2)
		if len(splits) != 2 {
			return nil, fmt.Errorf("invalid key=value pair: %s", pair)
		}

		asMap[splits[0]] = splits[1]
	}

	return asMap, nil
}

// FirstArg returns the first item in the given list of args or an empty string if the list is empty
func FirstArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}

	return ""
}
