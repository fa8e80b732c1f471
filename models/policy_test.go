package models_test

import (
	"encoding/json"
	"testing"

	"github.com/BerryBytes/awsorgctl/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestStringOrList_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected models.StringOrList
	}{
		{
			name:     "scalar becomes single-element list",
			input:    `s3:GetObject`,
			expected: models.StringOrList{"s3:GetObject"},
		},
		{
			name:     "sequence is kept",
			input:    "- s3:GetObject\n- s3:PutObject",
			expected: models.StringOrList{"s3:GetObject", "s3:PutObject"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got models.StringOrList
			require.NoError(t, yaml.Unmarshal([]byte(tt.input), &got))
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestStringOrList_UnmarshalJSON(t *testing.T) {
	var got models.StringOrList
	require.NoError(t, json.Unmarshal([]byte(`"*"`), &got))
	assert.Equal(t, models.StringOrList{"*"}, got)

	require.NoError(t, json.Unmarshal([]byte(`["a","b"]`), &got))
	assert.Equal(t, models.StringOrList{"a", "b"}, got)

	assert.Error(t, json.Unmarshal([]byte(`{"bad":1}`), &got))
}

func TestParsePolicyDocument_ObjectStatement(t *testing.T) {
	body := `{"Version":"2012-10-17","Statement":{"Effect":"Allow","Action":"sts:AssumeRole","Resource":"*"}}`

	doc, err := models.ParsePolicyDocument(body)
	require.NoError(t, err)
	require.Len(t, doc.Statement, 1)
	assert.Equal(t, models.StringOrList{"sts:AssumeRole"}, doc.Statement[0].Action)
}

func TestParsePolicyDocument_Invalid(t *testing.T) {
	_, err := models.ParsePolicyDocument(`not json`)
	assert.Error(t, err)
}

func TestPolicyDocument_Equal(t *testing.T) {
	base := &models.PolicyDocument{
		Version: models.PolicyVersion,
		Statement: []models.Statement{
			{Effect: "Allow", Action: models.StringOrList{"s3:GetObject", "s3:PutObject"}, Resource: models.StringOrList{"*"}},
			{Effect: "Deny", Action: models.StringOrList{"iam:*"}, Resource: models.StringOrList{"*"}},
		},
	}

	tests := []struct {
		name     string
		other    *models.PolicyDocument
		expected bool
	}{
		{
			name: "reordered statements and actions are equal",
			other: &models.PolicyDocument{
				Version: models.PolicyVersion,
				Statement: []models.Statement{
					{Effect: "Deny", Action: models.StringOrList{"iam:*"}, Resource: models.StringOrList{"*"}},
					{Effect: "Allow", Action: models.StringOrList{"s3:PutObject", "s3:GetObject"}, Resource: models.StringOrList{"*"}},
				},
			},
			expected: true,
		},
		{
			name: "different action set is not equal",
			other: &models.PolicyDocument{
				Version: models.PolicyVersion,
				Statement: []models.Statement{
					{Effect: "Allow", Action: models.StringOrList{"s3:GetObject"}, Resource: models.StringOrList{"*"}},
					{Effect: "Deny", Action: models.StringOrList{"iam:*"}, Resource: models.StringOrList{"*"}},
				},
			},
			expected: false,
		},
		{
			name: "missing statement is not equal",
			other: &models.PolicyDocument{
				Version: models.PolicyVersion,
				Statement: []models.Statement{
					{Effect: "Allow", Action: models.StringOrList{"s3:GetObject", "s3:PutObject"}, Resource: models.StringOrList{"*"}},
				},
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, base.Equal(tt.other))
		})
	}
}

func TestPolicyDocument_Equal_Conditions(t *testing.T) {
	a := models.TrustPolicy("112233445566", true)
	b := models.TrustPolicy("112233445566", true)
	assert.True(t, a.Equal(b))

	noMFA := models.TrustPolicy("112233445566", false)
	assert.False(t, a.Equal(noMFA))
}

func TestPolicyDocument_Equal_Nil(t *testing.T) {
	var nilDoc *models.PolicyDocument
	assert.True(t, nilDoc.Equal(nil))
	assert.False(t, nilDoc.Equal(&models.PolicyDocument{}))
}

func TestTrustPolicy(t *testing.T) {
	doc := models.TrustPolicy("999988887777", true)

	require.Len(t, doc.Statement, 1)
	stmt := doc.Statement[0]
	assert.Equal(t, "Allow", stmt.Effect)
	assert.Equal(t, models.StringOrList{"arn:aws:iam::999988887777:root"}, stmt.Principal["AWS"])
	assert.Equal(t, models.StringOrList{"true"}, stmt.Condition["Bool"]["aws:MultiFactorAuthPresent"])
}

func TestAssumeRoleStatementPolicy(t *testing.T) {
	doc := models.AssumeRoleStatementPolicy("admin", "/", []string{"222222222222", "111111111111"})

	require.Len(t, doc.Statement, 1)
	assert.Equal(t, models.StringOrList{
		"arn:aws:iam::111111111111:role/admin",
		"arn:aws:iam::222222222222:role/admin",
	}, doc.Statement[0].Resource)
}

func TestPolicyDocument_MarshalRoundTrip(t *testing.T) {
	doc := models.AssumeRoleStatementPolicy("ops", "/teams/", []string{"111111111111"})

	body, err := doc.Marshal()
	require.NoError(t, err)

	parsed, err := models.ParsePolicyDocument(body)
	require.NoError(t, err)
	assert.True(t, doc.Equal(parsed))
	assert.Equal(t, models.StringOrList{"arn:aws:iam::111111111111:role/teams/ops"}, parsed.Statement[0].Resource)
}
