package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchesAny(t *testing.T) {
	t.Parallel()

	realWorldErrorMessages := []string{
		"Failed to load state: RequestError: send request failed",
		"aws_cloudwatch_metric_alarm.asg_high_memory_above_threshold: Creating metric alarm failed: ValidationError",
		"Plugin reinitialization required. Please run \"terraform init\"",
	}

	testCases := []struct {
		list     []string
		element  string
		expected bool
	}{
		{nil, "", false},
		{nil, "foo", false},
		{[]string{}, "foo", false},
		{[]string{"(?s).*Failed to load state.*send request failed.*"}, realWorldErrorMessages[0], true},
		{[]string{"(?s).*Failed to load state.*send request failed.*"}, realWorldErrorMessages[1], false},
		{[]string{"(?s).*Creating metric alarm failed.*ValidationError.*"}, realWorldErrorMessages[1], true},
		{[]string{"(?s).*Plugin reinitialization required.*"}, realWorldErrorMessages[2], true},
		{[]string{"foo", "bar"}, "foobar", true},
	}

	for _, tc := range testCases {
		actual := MatchesAny(tc.list, tc.element)
		assert.Equal(t, tc.expected, actual, "For list %v and element %s", tc.list, tc.element)
	}
}

func TestListContainsElement(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		list     []string
		element  string
		expected bool
	}{
		{[]string{}, "", false},
		{[]string{}, "foo", false},
		{[]string{"foo"}, "foo", true},
		{[]string{"bar", "foo", "baz"}, "foo", true},
		{[]string{"bar", "foo", "baz"}, "nope", false},
		{[]string{"bar", "foo", "baz"}, "", false},
	}

	for _, tc := range testCases {
		actual := ListContainsElement(tc.list, tc.element)
		assert.Equal(t, tc.expected, actual, "For list %v and element %s", tc.list, tc.element)
	}
}

func TestRemoveElementFromList(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		list     []string
		element  string
		expected []string
	}{
		{[]string{}, "", nil},
		{[]string{"foo"}, "foo", nil},
		{[]string{"bar"}, "foo", []string{"bar"}},
		{[]string{"bar", "foo", "baz"}, "foo", []string{"bar", "baz"}},
		{[]string{"foo", "bar", "foo"}, "foo", []string{"bar"}},
	}

	for _, tc := range testCases {
		actual := RemoveElementFromList(tc.list, tc.element)
		assert.Equal(t, tc.expected, actual, "For list %v and element %s", tc.list, tc.element)
	}
}

func TestRemoveDuplicatesFromList(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		list     []string
		expected []string
	}{
		{[]string{}, []string{}},
		{[]string{"foo"}, []string{"foo"}},
		{[]string{"foo", "bar", "foo"}, []string{"foo", "bar"}},
		{[]string{"foo", "foo", "foo"}, []string{"foo"}},
		{[]string{"bar", "foo", "bar"}, []string{"bar", "foo"}},
	}

	for _, tc := range testCases {
		actual := RemoveDuplicatesFromList(tc.list)
		assert.Equal(t, tc.expected, actual, "For list %v", tc.list)
	}
}

func TestCloneStringListIsIndependent(t *testing.T) {
	t.Parallel()

	original := []string{"apply", "-auto-approve"}
	cloned := CloneStringList(original)
	cloned[0] = "destroy"

	assert.Equal(t, "apply", original[0])
}

func TestCloneStringMapIsIndependent(t *testing.T) {
	t.Parallel()

	original := map[string]string{"TF_VAR_region": "europe-west1"}
	cloned := CloneStringMap(original)
	cloned["TF_VAR_region"] = "us-east1"

	assert.Equal(t, "europe-west1", original["TF_VAR_region"])
}

func TestKeyValuePairStringListToMap(t *testing.T) {
	t.Parallel()

	asMap, err := KeyValuePairStringListToMap([]string{"foo=bar", "TF_VAR_id=a=b"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"foo": "bar", "TF_VAR_id": "a=b"}, asMap)

	_, err = KeyValuePairStringListToMap([]string{"not-a-pair"})
	require.Error(t, err)
}

func TestFirstArg(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", FirstArg(nil))
	assert.Equal(t, "plan", FirstArg([]string{"plan", "-out=tfplan"}))
}
