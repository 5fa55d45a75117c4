package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSendEmailAPI struct {
	inputs []*sesv2.SendEmailInput
	err    error
}

func (m *mockSendEmailAPI) SendEmail(_ context.Context, params *sesv2.SendEmailInput,
	_ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	m.inputs = append(m.inputs, params)
	if m.err != nil {
		return nil, m.err
	}
	return &sesv2.SendEmailOutput{}, nil
}

func TestSESSimpleSend(t *testing.T) {
	api := &mockSendEmailAPI{}
	p := NewSESWithClient(api)

	msg := sampleMessage()
	msg.Attachments = nil
	require.NoError(t, p.Send(context.Background(), msg))

	require.Len(t, api.inputs, 1)
	input := api.inputs[0]
	require.NotNil(t, input.Content.Simple)
	assert.Nil(t, input.Content.Raw)
	assert.Equal(t, "Hi", *input.Content.Simple.Subject.Data)
	assert.Equal(t, []string{"user@example.com"}, input.Destination.ToAddresses)
	assert.Equal(t, "Hello", *input.Content.Simple.Body.Text.Data)
}

func TestSESRawSendWithAttachments(t *testing.T) {
	api := &mockSendEmailAPI{}
	p := NewSESWithClient(api)

	require.NoError(t, p.Send(context.Background(), sampleMessage()))

	require.Len(t, api.inputs, 1)
	input := api.inputs[0]
	require.NotNil(t, input.Content.Raw)
	assert.Nil(t, input.Content.Simple)
	assert.NotEmpty(t, input.Content.Raw.Data)
}

func TestSESSendError(t *testing.T) {
	api := &mockSendEmailAPI{err: errors.New("throttled")}
	p := NewSESWithClient(api)

	err := p.Send(context.Background(), sampleMessage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}
