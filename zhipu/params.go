package zhipu

// Param sets a field of the request body. Params are applied in order after
// "model" and "messages", so a later Param wins and Param("model", ...) can
// override the client's model for one call.
type Param func(body map[string]any)

// Model overrides the client's model for one call.
func Model(name string) Param {
	return Set("model", name)
}

// Temperature sets the sampling temperature.
func Temperature(t float64) Param {
	return Set("temperature", t)
}

// TopP sets the nucleus sampling parameter.
func TopP(p float64) Param {
	return Set("top_p", p)
}

// MaxTokens limits the length of the reply.
func MaxTokens(n int) Param {
	return Set("max_tokens", n)
}

// Stop sets stop sequences.
func Stop(seqs ...string) Param {
	return Set("stop", seqs)
}

// DoSample toggles sampling. With false, temperature and top_p are ignored
// by the API.
func DoSample(enabled bool) Param {
	return Set("do_sample", enabled)
}

// RequestID sets the request_id echoed back by the API. When absent the
// client generates one.
func RequestID(id string) Param {
	return Set("request_id", id)
}

// UserID identifies the end user to the API.
func UserID(id string) Param {
	return Set("user_id", id)
}

// Tools offers tools to the model.
func Tools(tools ...Tool) Param {
	return func(body map[string]any) {
		if len(tools) > 0 {
			body["tools"] = tools
		}
	}
}

// ToolChoice sets tool_choice ("auto" is the only value the API accepts
// today).
func ToolChoice(choice string) Param {
	return Set("tool_choice", choice)
}

// JSONResponse asks the model to reply with a JSON object.
func JSONResponse() Param {
	return Set("response_format", map[string]string{"type": "json_object"})
}

// Set sets an arbitrary body field.
func Set(key string, value any) Param {
	return func(body map[string]any) {
		body[key] = value
	}
}
