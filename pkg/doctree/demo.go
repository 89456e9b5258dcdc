package doctree

// Demo returns a fresh copy of the sample dataset used when no API is
// configured: users/user123/posts/postA/comments/c1.
func Demo() *Tree {
	t := New()
	users := must(t.AddCollection("users"))
	user := must(users.AddDocument("user123", map[string]any{"name": "Vignesh", "age": 25}))
	posts := must(user.AddCollection("posts"))
	post := must(posts.AddDocument("postA", map[string]any{"title": "My post", "content": "Hello world"}))
	comments := must(post.AddCollection("comments"))
	must(comments.AddDocument("c1", map[string]any{"text": "Nice post!"}))
	return t
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
