package provider

import (
	"context"
	"errors"
	"fmt"

	"ollmui/chat"
)

// languageNames maps ISO 639-1 codes to the names used in translation
// prompts.
var languageNames = map[string]string{
	"en": "English",
	"de": "German",
	"fr": "French",
	"es": "Spanish",
	"it": "Italian",
	"pt": "Portuguese",
	"nl": "Dutch",
	"pl": "Polish",
	"ru": "Russian",
	"tr": "Turkish",
	"ar": "Arabic",
	"hi": "Hindi",
	"zh": "Chinese",
	"ja": "Japanese",
	"ko": "Korean",
	"hu": "Hungarian",
	"cs": "Czech",
	"sv": "Swedish",
	"no": "Norwegian",
	"da": "Danish",
	"fi": "Finnish",
	"el": "Greek",
	"uk": "Ukrainian",
	"ro": "Romanian",
	"vi": "Vietnamese",
	"th": "Thai",
}

// buildTranslatePrompt renders the translation instruction for one
// source/target language pair. An empty source code means the source
// language is unknown and the model should detect it.
func buildTranslatePrompt(text, sourceCode, targetCode string) (string, error) {
	targetName, ok := languageNames[targetCode]
	if !ok {
		return "", fmt.Errorf("cannot find language name for '%s'", targetCode)
	}

	if sourceCode == "" {
		return fmt.Sprintf(`You are a professional translator into %[1]s (%[2]s). Detect the language of the given text, then accurately convey its meaning and nuances while adhering to %[1]s grammar, vocabulary, and cultural sensitivities.
Produce only the %[1]s translation, without any additional explanations or commentary. Please translate the following text into %[1]s:


%[3]s`, targetName, targetCode, text), nil
	}

	sourceName, ok := languageNames[sourceCode]
	if !ok {
		return "", fmt.Errorf("cannot find language name for '%s'", sourceCode)
	}

	return fmt.Sprintf(`You are a professional %[1]s (%[2]s) to %[3]s (%[4]s) translator. Your goal is to accurately convey the meaning and nuances of the original %[1]s text while adhering to %[3]s grammar, vocabulary, and cultural sensitivities.
Produce only the %[3]s translation, without any additional explanations or commentary. Please translate the following %[1]s text into %[3]s:


%[5]s`, sourceName, sourceCode, targetName, targetCode, text), nil
}

// normalizeAbort folds every backend's cancellation failure into the
// shared sentinel so the engine can recognize aborts uniformly.
func normalizeAbort(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return chat.ErrAborted
	}
	return err
}
