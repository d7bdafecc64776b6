package anthropic

// BuildCachedSystemBlocks constructs system content blocks with a cache
// breakpoint at the given TTL ("5m" or "1h"). The extraction prompt is
// identical across requests, so repeated parses read it from cache.
func BuildCachedSystemBlocks(text, ttl string) []SystemBlock {
	if text == "" {
		return nil
	}
	return []SystemBlock{
		{
			Text: text,
			CacheControl: &CacheControl{
				TTL: ttl,
			},
		},
	}
}
