/*
The pagecat library.

This library materializes the landing page source of the Shepherd
application. It reads the two dynamic inputs of the page, the application
display name and the active subscription plans, from a content provider,
renders them into the fixed page template and atomically replaces the page
file with the result.

A simple example of how you might use this library to render the page once
from an in-memory provider and write it to app/page.tsx.

	m, err := pagecat.NewMaterializer(pagecat.MaterializerInput{})
	if err != nil {
		log.Fatal(err)
	}
	g := pagecat.NewGenerator(pagecat.GeneratorInput{
		Provider:     provider,
		Materializer: m,
	})
	if _, err := g.Run(context.Background(), "app/page.tsx"); err != nil {
		log.Fatal(err)
	}
*/
package pagecat
